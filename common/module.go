package common

type Module string

const (
	ModuleEscrow Module = "escrow"
)

func (m Module) String() string {
	return string(m)
}
