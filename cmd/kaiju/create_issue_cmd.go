package main

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/editor"
	"github.com/sitegui/kaiju/issuecode"
	"github.com/sitegui/kaiju/jira"
)

func newCreateIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-issue",
		Short: "Create a new issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scratch, err := config.CacheDir()
			if err != nil {
				return err
			}

			body, err := askIssueBody(cfg, func(contents string) (string, error) {
				return editor.AskUserEdit(scratch, contents, "md")
			})
			if err != nil || body == nil {
				return err
			}

			logrus.Info("Will request Jira API")
			created, err := jira.NewClient(cfg).CreateIssue(cmd.Context(), body)
			if err != nil {
				return err
			}

			link := cfg.APIHost + "/browse/" + created.Key
			logrus.WithField("key", created.Key).Infof("Created issue: %s", link)
			if err := clipboard.WriteAll(link); err != nil {
				logrus.WithError(err).Debug("Could not copy issue link to clipboard")
			}
			return nil
		},
	}
}

// askIssueBody lets the user edit the new issue template until it parses. It returns a nil
// body when the user gives up, by leaving the template untouched or emptying the file.
func askIssueBody(cfg *config.Config, edit func(string) (string, error)) (map[string]interface{}, error) {
	template := issuecode.NewIssue(cfg)
	markdown := template

	for {
		var err error
		if markdown, err = edit(markdown); err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(markdown)
		if trimmed == strings.TrimSpace(template) || trimmed == "" {
			logrus.Warn("Exiting because the user does not want to create the issue")
			return nil, nil
		}

		issue, err := issuecode.ParseMarkdown(markdown)
		if err == nil {
			var body map[string]interface{}
			if body, err = issuecode.PrepareAPIBody(cfg, issue); err == nil {
				return body, nil
			}
		}

		logrus.WithError(err).Warn("Failed to parse issue. Please retry")
		markdown = fmt.Sprintf("-- Failed to parse issue: %s\n"+
			"-- Please edit it to fix the problem\n"+
			"-- If you want to abandon the process, provide an empty file\n"+
			"%s", err, markdown)
	}
}
