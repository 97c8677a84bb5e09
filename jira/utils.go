package jira

import "github.com/sirupsen/logrus"

const cachedLogCategory = "jira_cached"

func logger(category, code string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"category": category,
		"code":     code,
	})
}
