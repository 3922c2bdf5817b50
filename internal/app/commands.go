package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ErrFailCommand is what the fail command returns.
var ErrFailCommand = errors.New("command failed on purpose")

// newRootCommand builds the command tree. A new tree is built per dispatch
// so flag values never leak between commands.
func (rt *Runtime) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "console",
		Short:         "Stagehand sample console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(rt.newRoleCreateCommand())
	root.AddCommand(rt.newRoleListCommand())
	root.AddCommand(rt.newRoleShowCommand())
	root.AddCommand(rt.newAccountCreateCommand())
	root.AddCommand(rt.newAccountListCommand())
	root.AddCommand(newEchoCommand())
	root.AddCommand(newFailCommand())

	root.SetHelpCommand(newHelpCommand(root))
	root.InitDefaultHelpCmd()
	return root
}

func hasCommand(root *cobra.Command, name string) bool {
	for _, c := range root.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

func newHelpCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "List available commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				target, _, err := root.Find(args)
				if err != nil || target == root {
					return fmt.Errorf("unknown command %q", args[0])
				}
				printCommandHelp(w, target)
				return nil
			}
			printCommandList(w, root)
			return nil
		},
	}
}

func printCommandList(w io.Writer, root *cobra.Command) {
	fmt.Fprintln(w, root.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  command [options] [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Available commands:")

	commands := root.Commands()
	width := 0
	for _, c := range commands {
		if len(c.Name()) > width {
			width = len(c.Name())
		}
	}
	for _, c := range commands {
		if c.Hidden {
			continue
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, c.Name(), c.Short)
	}
}

func printCommandHelp(w io.Writer, c *cobra.Command) {
	fmt.Fprintln(w, c.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", c.Use)
	if flags := c.LocalFlags().FlagUsages(); flags != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		fmt.Fprint(w, flags)
	}
}

func (rt *Runtime) newRoleCreateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "role:create <identifier>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := rt.CreateRole(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Role %q created.\n", role.Identifier)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "role description")
	return cmd
}

func (rt *Runtime) newRoleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "role:list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := rt.roles.FindAll(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(roles) == 0 {
				fmt.Fprintln(w, "No roles found.")
				return nil
			}
			for _, role := range roles {
				if role.Description == "" {
					fmt.Fprintln(w, role.Identifier)
					continue
				}
				fmt.Fprintf(w, "%s: %s\n", role.Identifier, role.Description)
			}
			return nil
		},
	}
}

func (rt *Runtime) newRoleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "role:show <identifier>",
		Short: "Show one role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := rt.policy.GetRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Identifier: %s\n", role.Identifier)
			fmt.Fprintf(w, "Description: %s\n", role.Description)
			return nil
		},
	}
}

func (rt *Runtime) newAccountCreateCommand() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "account:create <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := rt.CreateAccount(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %q created with role %q.\n", account.Name, account.RoleIdentifier)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role identifier (required)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (rt *Runtime) newAccountListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "account:list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := rt.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(w, "No accounts found.")
				return nil
			}
			for _, a := range accounts {
				fmt.Fprintf(w, "%s (%s)\n", a.Name, a.RoleIdentifier)
			}
			return nil
		},
	}
}

func newEchoCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "echo [words...]",
		Short:              "Print the arguments",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(args, " "))
			return nil
		},
	}
}

func newFailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fail",
		Short: "Always fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "About to fail.")
			return ErrFailCommand
		},
	}
}
