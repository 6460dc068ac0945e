package main

import (
	"context"
	"fmt"
	"io"

	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/internal/testimpl"
	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/spf13/cobra"
)

func deployCmd(opts *rootOptions) *cobra.Command {
	var (
		initialMask string
		upgradeMask string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the sample implementations, clone a proxy and upgrade it",
		Long: `deploy walks the full factory lifecycle against the configured backend:

  1. deploy TestImplV1 and a factory over it
  2. clone one proxy with --mask
  3. deploy TestImplV2 and upgrade the factory
  4. update the proxy's feature set to --upgrade-mask

Every address is printed as it is created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			defer env.Close()

			return runDeploy(cmd.Context(), env.builder, cmd.OutOrStdout(), initialMask, upgradeMask)
		},
	}

	cmd.Flags().StringVar(&initialMask, "mask", "0b1010", "feature mask of the cloned proxy")
	cmd.Flags().StringVar(&upgradeMask, "upgrade-mask", "0b1001000", "feature mask applied after the upgrade")
	return cmd
}

func runDeploy(ctx context.Context, b *goClone.Builder, out io.Writer, initialMask, upgradeMask string) error {
	v1 := testimpl.V1()
	fmt.Fprintf(out, "Implementation V1 deployed to: %s\n", v1.Address())

	f, err := b.WithImplementation(v1).BuildContext(ctx)
	if err != nil {
		return fmt.Errorf("deploy factory: %w", err)
	}
	defer f.Close()
	fmt.Fprintf(out, "Factory deployed to: %s\n", f.Address())

	ownerCtx := ownerContext(ctx, f)

	mask, err := permission.ParseMask(f.MaskBits(), initialMask)
	if err != nil {
		return fmt.Errorf("parse --mask: %w", err)
	}
	proxy, err := f.Clone(ctx, mask)
	if err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	fmt.Fprintf(out, "Clone deployed to: %s (mask %s)\n", proxy.Address(), permission.FormatMask(mask))

	v2 := testimpl.V2()
	fmt.Fprintf(out, "Implementation V2 deployed to: %s\n", v2.Address())
	if err := f.UpgradeImplementation(ownerCtx, v2, goClone.Selectors(v2)); err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	fmt.Fprintf(out, "Factory upgraded to V2 (version %d, %d entry points)\n", f.Version(), len(f.EntryPoints()))

	next, err := permission.ParseMask(f.MaskBits(), upgradeMask)
	if err != nil {
		return fmt.Errorf("parse --upgrade-mask: %w", err)
	}
	if err := f.UpdateFeatureSet(ownerCtx, proxy.Address(), next); err != nil {
		return fmt.Errorf("update feature set: %w", err)
	}
	fmt.Fprintf(out, "Feature set of %s updated to %s\n", proxy.Address(), permission.FormatMask(next))

	for _, sig := range v2.Signatures() {
		fmt.Fprintf(out, "  %-14s id=%d\n", sig, f.GetFuncID(selector.FromSignature(sig)))
	}
	return nil
}

// ownerContext attaches a freshly issued owner token when the factory can
// sign one; otherwise ctx is returned unchanged.
func ownerContext(ctx context.Context, f *goClone.Factory) context.Context {
	token, err := f.IssueOwnerToken("goclone-cli")
	if err != nil {
		return ctx
	}
	return goClone.WithOwnerToken(ctx, token)
}
