package common

// HttpResponse is the envelope of every API response.
type HttpResponse[T any] struct {
	Error     *string `json:"error"`
	Code      string  `json:"code,omitempty"`
	Retryable bool    `json:"retryable,omitempty"`
	Result    *T      `json:"result,omitempty"`
}
