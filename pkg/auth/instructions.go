package auth

import (
	"fmt"
	"strings"
)

// ShowAppRegistrationGuide explains how to get consumer credentials
func ShowAppRegistrationGuide() {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("TUMBLR API CREDENTIALS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
	fmt.Println("tagfinder signs every request with OAuth 1.0a. You need an app:")
	fmt.Println()
	fmt.Println("1. Register an app at https://www.tumblr.com/oauth/apps")
	fmt.Println("   - Application Name: anything, e.g. 'Tag Finder'")
	fmt.Println("   - Application Website: http://localhost")
	fmt.Println("   - Default callback URL: http://localhost")
	fmt.Println()
	fmt.Println("2. Copy the OAuth Consumer Key and the Secret Key ('Show secret key').")
	fmt.Println()
	fmt.Println("3. Run 'tagfinder auth oauth' to authorize the app for your account.")
	fmt.Println("   You will be sent to a localhost URL that fails to load; that is")
	fmt.Println("   expected. Copy the whole URL from the address bar and paste it back.")
	fmt.Println()
	fmt.Println("The token pair gives access to your account. Do not share it.")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
}

// ShowEnvHint prints the variables a run reads credentials from
func ShowEnvHint() {
	fmt.Println("\nCredentials can also come from the environment or a .env file:")
	for _, name := range []string{EnvConsumerKey, EnvConsumerSecret, EnvOAuthToken, EnvOAuthSecret} {
		fmt.Printf("   %s=...\n", name)
	}
}
