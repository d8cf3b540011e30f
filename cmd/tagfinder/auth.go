package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tagfinder/pkg/auth"
	"tagfinder/pkg/ui"
)

var (
	envFile     string
	callbackURL string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Tumblr credentials",
	Long: `Manage stored Tumblr API credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (TUMBLR_*, read only)

Never share your credentials or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store an existing credential set",
	Long: `Store a consumer key/secret and OAuth token/secret you already have.

Secrets are read without echo. To obtain a token pair for your account run
'tagfinder auth oauth' instead.`,
	Example: `  # Interactive login as the default account
  tagfinder auth login

  # Store under a name
  tagfinder auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove stored credentials",
	Long:  `Remove stored credentials. Without an account name you pick from a list.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with masked credentials.`,
	RunE:  runList,
}

var oauthCmd = &cobra.Command{
	Use:   "oauth [account]",
	Short: "Authorize the app and store the token pair",
	Long: `Run the OAuth 1.0a authorization flow for a registered Tumblr app.

You are asked for the app's consumer key and secret (or they are taken from
TUMBLR_CONSUMER_KEY and TUMBLR_CONSUMER_SECRET), shown a URL to approve the
app, and asked to paste back the URL Tumblr redirected you to. The resulting
token pair is stored like 'auth login' does.`,
	Example: `  # Authorize and store as the default account
  tagfinder auth oauth

  # Also write the credentials to .env
  tagfinder auth oauth --env-file .env`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(oauthCmd)

	oauthCmd.Flags().StringVar(&envFile, "env-file", "", "also write the credentials to this .env file")
	oauthCmd.Flags().StringVar(&callbackURL, "callback", auth.DefaultCallbackURL, "callback URL registered for the app")
}

func accountArg(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultAccount
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := accountArg(args)
	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil {
		if !confirm(reader, fmt.Sprintf("Account '%s' already exists. Update credentials? (y/N): ", name)) {
			return nil
		}
	}

	fmt.Println("Enter your Tumblr credentials (secrets are hidden as you type):")
	fmt.Println()

	account := &auth.Account{Name: name}
	fmt.Print("Consumer key: ")
	if account.ConsumerKey, err = readLine(reader); err != nil {
		return err
	}
	fmt.Print("Consumer secret: ")
	if account.ConsumerSecret, err = readSecret(reader); err != nil {
		return err
	}
	fmt.Print("OAuth token: ")
	if account.Token, err = readLine(reader); err != nil {
		return err
	}
	fmt.Print("OAuth token secret: ")
	if account.TokenSecret, err = readSecret(reader); err != nil {
		return err
	}

	return storeAccount(manager, account)
}

func runOAuth(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)

	auth.ShowAppRegistrationGuide()

	key := os.Getenv(auth.EnvConsumerKey)
	secret := os.Getenv(auth.EnvConsumerSecret)
	if key == "" {
		fmt.Print("Consumer key: ")
		if key, err = readLine(reader); err != nil {
			return err
		}
	}
	if secret == "" {
		fmt.Print("Consumer secret: ")
		if secret, err = readSecret(reader); err != nil {
			return err
		}
	}
	if key == "" || secret == "" {
		return errors.New("consumer key and secret are required")
	}

	handshake := auth.NewHandshake(key, secret, callbackURL, auth.TumblrEndpoint)
	authURL, err := handshake.Start()
	if err != nil {
		return err
	}

	fmt.Println("\nOpen this URL and allow access:")
	fmt.Printf("\n  %s\n\n", ui.Cyan(authURL))
	fmt.Print("Paste the URL you were redirected to: ")
	redirect, err := readLine(reader)
	if err != nil {
		return err
	}

	account, err := handshake.Finish(redirect)
	if err != nil {
		return err
	}
	account.Name = accountArg(args)

	if err := storeAccount(manager, account); err != nil {
		return err
	}

	if envFile != "" {
		if err := auth.WriteEnvFile(account, envFile); err != nil {
			return fmt.Errorf("failed to write %s: %w", envFile, err)
		}
		ui.PrintInfo("Credentials written to", envFile)
	}
	return nil
}

func storeAccount(manager *auth.Manager, account *auth.Account) error {
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err)
		return errSilent
	}

	ui.PrintSuccess("Account saved: " + account.Name)
	sanitized := auth.SanitizeAccount(account)
	fmt.Printf("   Consumer key: %s\n", sanitized.ConsumerKey)
	fmt.Printf("   OAuth token: %s\n", sanitized.Token)

	fmt.Println("\nStart a search with:")
	fmt.Println("  $ tagfinder search")
	if account.Name != auth.DefaultAccount {
		fmt.Printf("  $ tagfinder search --account %s\n", account.Name)
	}
	fmt.Println("\nNever share your credentials or config files!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintWarning("No stored accounts found")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Name)
		}
		fmt.Printf("  0. Cancel\n\n")
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice == 0 {
			return nil
		}
		if choice < 0 || choice > len(accounts) {
			return errors.New("invalid choice")
		}
		name = accounts[choice-1].Name
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err)
		return errSilent
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'tagfinder auth oauth' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Consumer key: %s\n", sanitized.ConsumerKey)
		fmt.Printf("   OAuth token: %s\n", sanitized.Token)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

func confirm(reader *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

func readLine(reader *bufio.Reader) (string, error) {
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads without echo on a terminal and falls back to a plain line
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return readLine(reader)
}
