package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	session "github.com/newsportal/go-session"
	"github.com/newsportal/go-session/provider/google"
	"github.com/newsportal/go-session/store/bunstore"
)

var (
	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsctl",
		Short:         "News portal account, session and subscription tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $HOME/.newsctl/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newGoogleLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newSubscribeCmd(),
		newHistoryCmd(),
		newStatsCmd(),
	)

	return root
}

type app struct {
	cfg      *session.ConfigObject
	store    *bunstore.CredentialStore
	client   *session.Client
	sessions *session.Manager
	logger   session.Logger
}

func setup() (*app, error) {
	cfg := &session.ConfigObject{}
	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(home, ".newsctl", "config.yaml")
		}
	}
	if configPath != "" {
		if loaded, err := session.LoadConfig(configPath); err == nil {
			cfg = loaded
		}
	}

	var logger session.Logger
	if verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = session.NewZapLogger(zl)
	} else {
		zl, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		logger = session.NewZapLogger(zl)
	}

	storePath := cfg.GetStorePath()
	if storePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".newsctl")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		storePath = filepath.Join(dir, "session.db")
	}

	store, err := bunstore.Open(storePath)
	if err != nil {
		return nil, err
	}

	client := session.NewClient(cfg, store).WithLogger(logger)
	sessions := session.NewManager(client, store).WithLogger(logger)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   client,
		sessions: sessions,
		logger:   logger,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store: %v", err)
	}
}

// boot validates the persisted credential so every command sees a settled
// Session.
func (a *app) boot(cmd *cobra.Command) error {
	return a.sessions.Boot(cmd.Context())
}

func (a *app) cacheAccount(cmd *cobra.Command) {
	snap := a.sessions.Current()
	if !snap.Session.IsAuthenticated() {
		return
	}
	if err := a.store.SaveAccount(cmd.Context(), snap.Session); err != nil {
		a.logger.Warn("failed to cache account: %v", err)
	}
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if email == "" {
				email = prompt("Email: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}

			message, err := a.sessions.Login(cmd.Context(), session.LoginPayload{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			a.cacheAccount(cmd)
			printMessage(cmd, message, "Logged in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var email, password, name, photo string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if email == "" {
				email = prompt("Email: ")
			}
			if name == "" {
				name = prompt("Display name: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}

			message, err := a.sessions.Register(cmd.Context(), session.RegisterPayload{
				Email:       email,
				Password:    password,
				DisplayName: name,
				PhotoURL:    photo,
			})
			if err != nil {
				if session.IsPolicyViolation(err) {
					fmt.Fprintf(cmd.ErrOrStderr(),
						"Password must be at least %d characters with an uppercase letter, a digit and a symbol (%s).\n",
						session.MinPasswordLength, session.PasswordSymbols)
				}
				return err
			}

			a.cacheAccount(cmd)
			printMessage(cmd, message, "Registered.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&photo, "photo", "", "avatar URL")
	return cmd
}

func newGoogleLoginCmd() *cobra.Command {
	var clientID, clientSecret string

	cmd := &cobra.Command{
		Use:   "google-login",
		Short: "Sign in through Google",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			provider := google.New(google.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Logger:       a.logger,
				OpenBrowser: func(consentURL string) error {
					fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to continue:\n\n  %s\n\n", consentURL)
					return nil
				},
			})

			message, err := a.sessions.FederatedLogin(cmd.Context(), provider)
			if err != nil {
				return err
			}

			a.cacheAccount(cmd)
			printMessage(cmd, message, "Logged in with Google.")
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Google OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Google OAuth client secret")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the persisted credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			a.sessions.Logout()
			if err := a.store.ClearAccounts(cmd.Context()); err != nil {
				a.logger.Warn("failed to clear cached accounts: %v", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session and derived capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.boot(cmd); err != nil {
				// offline or API down: show the cached account, display only
				cached, cacheErr := a.store.LoadAccount(cmd.Context())
				if cacheErr == nil && cached != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Could not validate the session; last known account:")
					printSession(cmd, *cached)
					return nil
				}
				return err
			}

			snap := a.sessions.Current()
			if !snap.Session.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}

			printSession(cmd, snap.Session)
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	var name, photo string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update display name or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && photo == "" {
				return fmt.Errorf("nothing to update: pass --name or --photo")
			}

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.boot(cmd); err != nil {
				return err
			}

			handler := session.NewUpdateProfileHandler(a.client, a.sessions)
			msg := session.UpdateProfileMessage{
				DisplayName: name,
				PhotoURL:    photo,
				OnResponse: func(resp *session.UpdateProfileResponse) {
					printMessage(cmd, resp.Message, "Profile updated.")
				},
			}

			if err := handler.Execute(cmd.Context(), msg); err != nil {
				return err
			}

			a.cacheAccount(cmd)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&photo, "photo", "", "new avatar URL")
	return cmd
}

func newSubscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe <tier>",
		Short: "Purchase a premium subscription",
		Long: `Purchase a premium subscription. Tiers:
  "1 minute"  $1
  "5 days"    $50
  "10 days"   $90`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := args[0]
			if _, ok := session.TierPrice(tier); !ok {
				return fmt.Errorf("unknown tier %q", tier)
			}

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.boot(cmd); err != nil {
				return err
			}

			handler := session.NewCompletePurchaseHandler(a.client, a.sessions)
			msg := session.CompletePurchaseMessage{
				SubscriptionDuration: tier,
				OnResponse: func(resp *session.CompletePurchaseResponse) {
					printMessage(cmd, resp.Message, "Subscription active.")
				},
			}

			if err := handler.Execute(cmd.Context(), msg); err != nil {
				return err
			}

			a.cacheAccount(cmd)
			return nil
		},
	}
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.boot(cmd); err != nil {
				return err
			}

			payments, err := a.client.PaymentHistory(cmd.Context())
			if err != nil {
				return err
			}

			if len(payments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No payments yet.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, p := range payments {
				fmt.Fprintf(out, "%s  $%-3d  %-10s  %s\n",
					p.PaidAt.Format("2006-01-02"), p.Amount, p.SubscriptionDuration, p.ID)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.boot(cmd); err != nil {
				return err
			}

			if !a.sessions.IsAdmin() {
				return session.ErrInsufficientRole
			}

			stats, err := a.client.UserStatistics(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total users:   %d\n", stats.TotalUsers)
			fmt.Fprintf(out, "Normal users:  %d\n", stats.NormalUsers)
			fmt.Fprintf(out, "Premium users: %d\n", stats.PremiumUsers)
			return nil
		},
	}
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func printSession(cmd *cobra.Command, sess session.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:   %s\n", sess.DisplayName)
	fmt.Fprintf(out, "Email:  %s\n", sess.Email)
	fmt.Fprintf(out, "Role:   %s\n", sess.Role)
	if sess.IsPremium() {
		fmt.Fprintf(out, "Tier:   premium (since %s)\n", sess.PremiumSince.Format(time.RFC822))
	} else {
		fmt.Fprintln(out, "Tier:   free")
	}
}

func printMessage(cmd *cobra.Command, message, fallback string) {
	if message == "" {
		message = fallback
	}
	fmt.Fprintln(cmd.OutOrStdout(), message)
}
