package cli

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		principal   string
		secret      string
		displayName string
		email       string
		employeeNum string
		affiliation []string
		scoped      []string
		admin       bool
		expires     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a dev-mode JWT carrying identity attributes",
		Long:  "Generate an HS256 JWT whose claims mirror the attribute set an SSO gateway would assert.",
		Example: `  # Token for a faculty member who can self-provision
  authctl token --principal jdoe@d.edu --employee-number E123 \
      --affiliation FACULTY --scoped-affiliation FACULTY@d.edu --secret dev-secret

  # Admin token for managing grants
  authctl token --principal admin@d.edu --employee-number A1 --admin --secret dev-secret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			claims := jwt.MapClaims{
				"sub": principal,
				"iat": now.Unix(),
				"exp": now.Add(expires).Unix(),

				"eppn": principal,
			}
			if displayName != "" {
				claims["name"] = displayName
			}
			if email != "" {
				claims["email"] = email
			}
			if employeeNum != "" {
				claims["employee_number"] = employeeNum
			}
			if len(affiliation) > 0 {
				claims["affiliation"] = affiliation
			}
			if len(scoped) > 0 {
				claims["scoped_affiliation"] = scoped
			}
			if admin {
				claims["admin"] = true
			}

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			signed, err := token.SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Principal (eppn and JWT sub claim)")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret (HS256)")
	cmd.Flags().StringVar(&displayName, "name", "", "Display name claim")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&employeeNum, "employee-number", "", "Durable institutional key claim")
	cmd.Flags().StringSliceVar(&affiliation, "affiliation", nil, "Unscoped affiliation claims")
	cmd.Flags().StringSliceVar(&scoped, "scoped-affiliation", nil, "Scoped affiliation claims")
	cmd.Flags().BoolVar(&admin, "admin", false, "Include admin claim in the token")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Token expiry duration")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}
