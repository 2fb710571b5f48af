package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/internal/config"
	"github.com/mutual-network/escrow-indexer/internal/postgres"
	"github.com/mutual-network/escrow-indexer/modules/escrow/export"
	escrowpostgres "github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

type exportEventsCmdOptions struct {
	FromSlot  uint64
	Out       string
	S3Bucket  string
	S3Key     string
	S3Region  string
	BatchSize int32
}

func NewExportEventsCommand() *cobra.Command {
	opts := &exportEventsCmdOptions{}

	cmd := &cobra.Command{
		Use:   "export-events",
		Short: "Export the indexed escrow event log as a parquet file",
		Example: `mutual export-events --chain solana-devnet --from-slot 250000000 --out events.parquet
mutual export-events --s3-bucket mutual-exports --s3-key devnet/events.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exportEventsHandler(cmd.Context(), cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.FromSlot, "from-slot", 0, "Export events starting at this slot")
	flags.StringVar(&opts.Out, "out", "", "Write the parquet file to this path")
	flags.StringVar(&opts.S3Bucket, "s3-bucket", "", "Upload the parquet file to this S3 bucket")
	flags.StringVar(&opts.S3Key, "s3-key", "", "S3 object key, defaults to <chain>/events-<from-slot>-<last-slot>.parquet")
	flags.StringVar(&opts.S3Region, "s3-region", "", "S3 region, defaults to the AWS shared config")
	flags.Int32Var(&opts.BatchSize, "batch", export.DefaultBatchSize, "Number of events read per database query")

	return cmd
}

func exportEventsHandler(ctx context.Context, cmd *cobra.Command, opts *exportEventsCmdOptions) error {
	if opts.Out == "" && opts.S3Bucket == "" {
		return errors.Wrap(errs.ArgumentRequired, "--out or --s3-bucket is required")
	}

	conf := config.Load().Modules.Escrow
	chainID := common.ParseChainID(string(conf.ChainID))
	if !chainID.IsSupported() {
		return errors.Wrapf(errs.Unsupported, "%q chain is not supported", chainID)
	}
	ctx = logger.WithContext(ctx, slogx.String("command", "export-events"), slogx.Stringer("chain", chainID))

	pool, err := postgres.NewPool(ctx, conf.Postgres)
	if err != nil {
		return errors.Wrap(err, "can't create Postgres connection pool")
	}
	defer pool.Close()

	start := time.Now()
	result, err := export.Events(ctx, escrowpostgres.NewRepository(pool), chainID, opts.FromSlot, opts.BatchSize)
	if err != nil {
		return errors.Wrap(err, "failed to export events")
	}
	if result.Count == 0 {
		logger.InfoContext(ctx, "No events to export", slogx.Uint64("from_slot", opts.FromSlot))
		return nil
	}
	logger.InfoContext(ctx, "Encoded escrow events",
		slogx.Int("count", result.Count),
		slogx.Uint64("last_slot", result.LastSlot),
		slogx.Duration("duration", time.Since(start)),
	)

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, result.Data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", opts.Out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", result.Count, opts.Out)
	}

	if opts.S3Bucket != "" {
		key := opts.S3Key
		if key == "" {
			key = fmt.Sprintf("%s/events-%d-%d.parquet", chainID, opts.FromSlot, result.LastSlot)
		}
		if err := uploadToS3(ctx, opts.S3Bucket, key, opts.S3Region, result.Data); err != nil {
			return errors.WithStack(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d events to s3://%s/%s\n", result.Count, opts.S3Bucket, key)
	}
	return nil
}

func uploadToS3(ctx context.Context, bucket, key, region string, data []byte) error {
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "can't load aws user config")
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	})

	uploader := manager.NewUploader(client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.apache.parquet"),
	}); err != nil {
		return errors.Wrapf(err, "failed to upload s3://%s/%s", bucket, key)
	}
	return nil
}
