package editor

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Some editors, IntelliJ among them, write the file a little after their command returns.
var saveDelay = time.Second

// Command returns the editor configured in $VISUAL, or else $EDITOR, split into program and
// arguments.
func Command() ([]string, error) {
	cmd := os.Getenv("VISUAL")
	if cmd == "" {
		cmd = os.Getenv("EDITOR")
	}
	if cmd == "" {
		return nil, errors.New("Couldn't determine which editor to use. " +
			"Please set the environment variable VISUAL with the command prefix you want to use")
	}

	words, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "Couldn't parse editor command: %s", cmd)
	}
	if len(words) == 0 {
		return nil, errors.New("Editor command cannot be empty")
	}
	return words, nil
}

// AskUserEdit writes contents to a temporary file in dir, opens it in the user's editor and
// returns what the file holds once the editor exits successfully.
func AskUserEdit(dir, contents, extension string) (string, error) {
	words, err := Command()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "Could not create %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("edit-%d.%s", time.Now().Unix(), extension))
	if err := ioutil.WriteFile(path, []byte(contents), 0o600); err != nil {
		return "", errors.Wrapf(err, "Could not write %s", path)
	}

	args := append(words[1:len(words):len(words)], path)
	cmd := exec.Command(words[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logrus.WithFields(logrus.Fields{
		"category": "editor",
		"program":  words[0],
		"path":     path,
	}).Debug("Will open editor")
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "The external editor didn't finish with success")
	}

	time.Sleep(saveDelay)

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "Could not read back %s", path)
	}
	return string(data), nil
}
