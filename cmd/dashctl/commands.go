package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linedash-backend/internal/accounts"
	"linedash-backend/internal/dashboard"
	"linedash-backend/internal/export"
)

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables of the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range c.app.Dashboard.ListTables(cmd.Context()) {
				fmt.Fprintln(c.out, t)
			}
			return nil
		},
	}
}

func (c *cli) inferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer [table]",
		Short: "Detect date, machine and result columns of a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := ""
			if len(args) == 1 {
				table = args[0]
			}
			ts, err := c.app.Dashboard.InferSchema(cmd.Context(), table)
			if err != nil {
				return err
			}
			return c.printJSON(ts)
		},
	}
}

func filterFlags(cmd *cobra.Command, fs *dashboard.FilterSet) {
	cmd.Flags().StringVar(&fs.Table, "table", "", "Table name (defaults to the configured table)")
	cmd.Flags().StringVar(&fs.Date, "date", "", "Day to filter on, YYYY-MM-DD")
	cmd.Flags().StringVar(&fs.Shift, "shift", "", "Shift: all, morning, afternoon or night")
	cmd.Flags().StringVar(&fs.Identifier, "identifier", "", "Identifier value to filter on")
}

func (c *cli) summaryCmd() *cobra.Command {
	var fs dashboard.FilterSet
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the production summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.app.Dashboard.GetProductionSummary(cmd.Context(), fs)
			if err != nil {
				return err
			}
			return c.printJSON(summary)
		},
	}
	filterFlags(cmd, &fs)
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var fs dashboard.FilterSet
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export filtered records as excel, csv, pdf or word",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			result, err := c.app.Dashboard.GetAllRecords(cmd.Context(), fs)
			if err != nil {
				return err
			}
			if output == "" {
				output = "export" + f.Extension()
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			werr := export.Write(file, f, export.Table{Title: fs.Table, Columns: result.Columns, Rows: result.Records})
			if err := errors.Join(werr, file.Close()); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "wrote %d rows to %s\n", len(result.Records), output)
			return nil
		},
	}
	filterFlags(cmd, &fs)
	cmd.Flags().StringVar(&format, "format", "excel", "Output format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	return cmd
}

func (c *cli) usersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage local accounts",
	}

	var req accounts.SignupRequest
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := c.app.Accounts.Signup(cmd.Context(), req)
			if !res.Success {
				return errors.New(res.Message)
			}
			fmt.Fprintln(c.out, res.Message)
			return nil
		},
	}
	addCmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	addCmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	addCmd.Flags().StringVar(&req.Password, "password", "", "Password")

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete accounts without an email address",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.app.Accounts.PurgeInvalid(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "removed %d invalid accounts\n", n)
			return nil
		},
	}

	usersCmd.AddCommand(addCmd, purgeCmd)
	return usersCmd
}
