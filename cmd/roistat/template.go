package main

import (
	"fmt"

	"go-roi-inspector/internal/container"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/region"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Create, inspect and combine region templates",
	Long: `Region templates are JSON lists of {"id", "shape", "params"} objects.
A reference is a file path, an http(s) URL or azblob://container/blob.`,
}

var (
	templateGeometry geometryFlags
	templateOut      string
)

var templateNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Write a template from --rect, --circle and --polygon flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if templateGeometry.empty() {
			return apperrors.NewInvalidInputError("no regions given", nil)
		}
		session, err := templateGeometry.session()
		if err != nil {
			return err
		}

		c, err := newContainer(cmd, nil)
		if err != nil {
			return err
		}
		defer c.Close()
		return saveSession(cmd, c, session)
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show REF",
	Short: "Print the regions of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		regions, err := c.Service().LoadTemplate(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		return printRegions(cmd.OutOrStdout(), regions)
	},
}

var templateMergeCmd = &cobra.Command{
	Use:   "merge REF...",
	Short: "Append templates into one, renumbering ids from 1",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		session := region.NewSession()
		for _, ref := range args {
			regions, err := c.Service().LoadTemplate(commandContext(cmd), ref)
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			session.Import(regions)
		}
		return saveSession(cmd, c, session)
	},
}

func init() {
	templateGeometry.register(templateNewCmd)
	for _, cmd := range []*cobra.Command{templateNewCmd, templateMergeCmd} {
		cmd.Flags().StringVarP(&templateOut, "output", "o", "", "Template reference to write")
		_ = cmd.MarkFlagRequired("output")
	}
	templateCmd.AddCommand(templateNewCmd, templateShowCmd, templateMergeCmd)
}

func saveSession(cmd *cobra.Command, c *container.Container, session *region.Session) error {
	if err := c.Service().SaveTemplate(commandContext(cmd), templateOut, session.Regions()); err != nil {
		return err
	}
	if err := printRegions(cmd.OutOrStdout(), session.Regions()); err != nil {
		return err
	}
	pterm.Success.Printfln("wrote %d regions to %s", session.Len(), templateOut)
	return nil
}
