package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Verify the LLM client is reachable before serving real chapters",
	Long: `Issues a known-good, cheap prompt through the configured LLM
client and reports success or failure. Run this once after deploying a
new config before pointing traffic at generate/approve, so a bad API
key or unreachable provider surfaces here instead of mid-chapter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildContainer(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Warmup(ctx); err != nil {
			return err
		}
		fmt.Println("warmup ok: LLM client reachable")
		return nil
	},
}
