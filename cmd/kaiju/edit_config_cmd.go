package main

import (
	"github.com/spf13/cobra"

	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/editor"
)

func newEditConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-config",
		Short: "Edit the configurations for Kaiju",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			scratch, err := config.CacheDir()
			if err != nil {
				return err
			}

			contents, err := config.ReadContents(path)
			if err != nil {
				return err
			}
			edited, err := editor.AskUserEdit(scratch, contents, "toml")
			if err != nil {
				return err
			}
			return config.WriteContents(path, edited)
		},
	}
}
