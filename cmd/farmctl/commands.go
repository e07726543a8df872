package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/farmclient"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/identity"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
)

// backend is an opened client plus whatever must be closed with it.
type backend struct {
	client  *farmclient.Client
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

type opener func(ctx context.Context, cfg *config.Config) (*backend, error)

// session is what login leaves on disk for later commands.
type session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type cli struct {
	cfg         *config.Config
	open        opener
	sessionPath string
	uid         string
	stdin       *bufio.Reader
}

func newRootCmd(cfg *config.Config, open opener) *cobra.Command {
	c := &cli{cfg: cfg, open: open}
	root := &cobra.Command{
		Use:           "farmctl",
		Short:         "Farmer profile and crop tracking CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cfg.Client.ProfilePolicy {
			case config.PolicyResilient, config.PolicyStrict:
				return nil
			}
			return fmt.Errorf("--policy must be %q or %q", config.PolicyResilient, config.PolicyStrict)
		},
	}
	home, _ := os.UserHomeDir()
	root.PersistentFlags().StringVar(&cfg.Client.ProfilePolicy, "policy", cfg.Client.ProfilePolicy, "profile policy: resilient or strict")
	root.PersistentFlags().StringVar(&c.sessionPath, "session-file", filepath.Join(home, ".farmtrack_session"), "where login stores the session")
	root.PersistentFlags().StringVar(&c.uid, "uid", "", "act as this user id instead of the logged-in one")

	root.AddCommand(c.registerCmd(), c.loginCmd(), c.logoutCmd(), c.profileCmd(), c.cropsCmd())
	return root
}

func (c *cli) with(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer b.close()
	stop := b.client.WatchAuth(func(u *identity.User) {
		if u == nil {
			logger.Debugf("auth state: signed out")
			return
		}
		logger.Debugf("auth state: signed in as %s", u.Email)
	})
	defer stop()
	return fn(ctx, b)
}

func (c *cli) registerCmd() *cobra.Command {
	var reg farmclient.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and farmer profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Email == "" {
				reg.Email = c.prompt(cmd, "Email: ")
			}
			pass, err := c.password(cmd, "Password: ")
			if err != nil {
				return err
			}
			reg.Password = pass
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				u, err := b.client.RegisterFarmer(ctx, reg)
				if err != nil {
					return err
				}
				if err := c.saveSession(session{UserID: u.ID, Email: u.Email, Token: u.Token, ExpiresAt: u.ExpiresAt}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "farmer name")
	cmd.Flags().StringVar(&reg.District, "district", "", "district")
	cmd.Flags().StringVar(&reg.Email, "email", "", "login email")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = c.prompt(cmd, "Email: ")
			}
			pass, err := c.password(cmd, "Password: ")
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				u, err := b.client.Login(ctx, email, pass)
				if err != nil {
					return err
				}
				if err := c.saveSession(session{UserID: u.ID, Email: u.Email, Token: u.Token, ExpiresAt: u.ExpiresAt}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadSession()
			if err != nil {
				return err
			}
			err = c.with(cmd, func(ctx context.Context, b *backend) error {
				_, err := b.client.RestoreSession(ctx, identity.User{ID: s.UserID, Email: s.Email, Token: s.Token, ExpiresAt: s.ExpiresAt})
				if apperr.IsAuth(err) {
					// expired or invalid: nothing left to revoke
					logger.Warnf("stored session not restorable: %v", err)
					return nil
				}
				if err != nil {
					return err
				}
				return b.client.Logout(ctx)
			})
			if err != nil {
				return err
			}
			if err := os.Remove(c.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the farmer profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := c.userID()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				p, err := b.client.GetUserProfile(ctx, uid)
				if err != nil {
					return err
				}
				if p == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "{}")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func (c *cli) cropsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "crops", Short: "Crop commands"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Record a crop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := c.userID()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				id, err := b.client.AddUserCrop(ctx, uid, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List crops, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := c.userID()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				list, err := b.client.ListUserCrops(ctx, uid)
				if err != nil {
					return err
				}
				for _, cr := range list {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", cr.ID, cr.CreatedAt.Format(time.RFC3339), cr.Name)
				}
				return nil
			})
		},
	})
	return cmd
}

// userID is --uid when given, otherwise the stored session's user.
func (c *cli) userID() (string, error) {
	if c.uid != "" {
		return c.uid, nil
	}
	s, err := c.loadSession()
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func (c *cli) saveSession(s session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(c.sessionPath, b, 0o600)
}

func (c *cli) loadSession() (*session, error) {
	b, err := os.ReadFile(c.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.New("not logged in; run farmctl login or pass --uid")
	}
	if err != nil {
		return nil, err
	}
	var s session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", c.sessionPath, err)
	}
	return &s, nil
}

func (c *cli) reader(cmd *cobra.Command) *bufio.Reader {
	if c.stdin == nil {
		c.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	return c.stdin
}

func (c *cli) prompt(cmd *cobra.Command, label string) string {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, _ := c.reader(cmd).ReadString('\n')
	return strings.TrimSpace(line)
}

// password reads without echo on a terminal and falls back to a plain line
// for piped input.
func (c *cli) password(cmd *cobra.Command, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), label)
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(pass), err
	}
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := c.reader(cmd).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
