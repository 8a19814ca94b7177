package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"commerce-agent/internal/repository"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the YAML catalog into the DynamoDB table used by the Lambda",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := repository.LoadFile(opts.catalog)
			if err != nil {
				return err
			}
			cfg, err := config.LoadDefaultConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			client, err := repository.New(awsdynamodb.NewFromConfig(cfg), table)
			if err != nil {
				return err
			}
			fx := store.Fixture()
			if err := client.Seed(cmd.Context(), fx.Products, fx.Orders); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products and %d orders into %s\n", len(fx.Products), len(fx.Orders), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "DynamoDB table name")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
