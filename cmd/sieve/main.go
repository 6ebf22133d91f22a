// Command sieve partitions record files into a pass output and a fail
// output, grouping records by a JSONPath key and checking each group
// against a set of JSONPath rules in parallel.
//
// Exit codes: 0 success, 1 failed or aborted run, 2 every record was
// rejected under reject_policy=fail.
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/kbukum/sieve/errors"
	"github.com/kbukum/sieve/logger"
	"github.com/kbukum/sieve/version"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	logger.Error("sieve failed", logger.MergeWithError(logger.Fields("code", string(apperrors.Code(err))), err))
	if apperrors.HasCode(err, apperrors.ErrCodeAllRejected) {
		return 2
	}
	return 1
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sieve",
		Short:         "Partition records into pass and fail outputs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			long, _ := cmd.Flags().GetBool("long")
			if long {
				_, err := io.WriteString(cmd.OutOrStdout(), version.Get().String()+"\n")
				return err
			}
			_, err := io.WriteString(cmd.OutOrStdout(), version.Short()+"\n")
			return err
		},
	}
	cmd.Flags().Bool("long", false, "include build time and Go version")
	return cmd
}
