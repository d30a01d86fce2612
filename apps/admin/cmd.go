package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/consent"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/user"
	"github.com/purelifecenter/portal/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	usrSvc     user.Service
	pushSvc    push.Service
	consentSvc consent.Service
	chatSvc    chat.Service
	i18nSvc    i18n.Service
	out        io.Writer
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // program name
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) rootCmd() *cobra.Command {
	if cli.out == nil {
		cli.out = os.Stdout
	}
	root := &cobra.Command{
		Use:           "admin <command>",
		Short:         "Pure Life Center administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.genVAPIDCmd(),
		cli.seedCmd(),
		cli.exportTranslationsCmd(),
	)
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <command> [args]",
		Short: "Run a goose command (up, down, status, version...) against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(cmd.Context(), args)
		},
	}
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email string
	var isAdmin bool
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or reactivate it with a new password. The password is prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" && email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "user %s saved (%s)\n", usr.DisplayName(), usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVarP(&uname, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant every admin role")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.resetPassword(cmd.Context(), uname, pwd)
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "the user's username or email")
	return cmd
}

func (cli *commandLine) genVAPIDCmd() *cobra.Command {
	var enable bool
	cmd := &cobra.Command{
		Use:   "genvapid",
		Short: "Generate a new VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cli.genVAPID(cmd.Context(), enable)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "enable web push once the keys are stored")
	return cmd
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load cookie categories, contact types and translations from a TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				_ = cmd.Usage()
				return errHelp
			}
			res, err := cli.seed(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d cookie categories, %d contact types, %d translations\n",
				res.categories, res.contactTypes, res.translations)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file")
	return cmd
}

func (cli *commandLine) exportTranslationsCmd() *cobra.Command {
	var lang, format, dir string
	cmd := &cobra.Command{
		Use:   "export-translations",
		Short: "Write the translation bundle of a language to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lang == "" {
				_ = cmd.Usage()
				return errHelp
			}
			path, err := cli.exportTranslations(cmd.Context(), lang, format, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "", "language tag")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or json")
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "output directory")
	return cmd
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
