package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/profiles"
)

func blockingStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocking-status <user-id>",
		Short: "Show whether a user is blocked by pending reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := appCtx.Gate.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !st.Blocked {
				fmt.Fprintf(out, "%s is not blocked\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s is blocked by %d obligation(s)\n", args[0], st.Count)
			for _, r := range st.Reasons {
				fmt.Fprintf(out, "  - %s\n", r)
			}
			return nil
		},
	}
}

func verifyProviderCmd() *cobra.Command {
	var (
		verified bool
		tier     string
	)
	cmd := &cobra.Command{
		Use:   "verify-provider <provider-id>",
		Short: "Set a provider's verification flag and subscription tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := profiles.VerificationInput{Verified: &verified}
			if tier != "" {
				t := domain.SubscriptionTier(strings.ToLower(tier))
				in.Tier = &t
			}
			p, err := appCtx.Directory.SetVerification(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provider %s verified=%t tier=%s\n", p.ProviderID, p.Verified, p.Tier)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verified, "verified", true, "identity verified")
	cmd.Flags().StringVar(&tier, "tier", "", "subscription tier: free, basic or premium")
	return cmd
}

func promoteAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote-admin <email>",
		Short: "Give an existing user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := auth.PromoteAdmin(cmd.Context(), storeOf(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) promoted to admin\n", u.Email, u.ID)
			return nil
		},
	}
}
