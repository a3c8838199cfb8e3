// Package prompt provides the small set of interactive terminal prompts
// frostctl needs: promptui-templated Select and Confirm. There is no
// password/text-input prompt here since the admin protocol carries no
// credentials.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts a prompt (Ctrl+C).
var ErrAborted = errors.New("prompt: aborted")

// SelectOption is one entry in a Select list.
type SelectOption struct {
	Label string
	Value string
}

// Select prompts the user to choose one of options, returning the chosen
// Value. Used by "frostctl connection close" when no connection id is
// given on the command line.
func Select(label string, options []SelectOption) (string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: options,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Label | cyan }}",
			Inactive: "  {{ .Label | white }}",
			Selected: "* {{ .Label | green }}",
		},
		Size: 10,
	}

	i, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return "", ErrAborted
		}
		return "", err
	}
	return options[i].Value, nil
}

// Confirm prompts for a yes/no answer, defaulting to defaultYes when the
// user presses Enter without typing anything.
func Confirm(label string, defaultYes bool) (bool, error) {
	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}
	p := promptui.Prompt{Label: fmt.Sprintf("%s [%s]", label, defaultStr), IsConfirm: true}

	result, err := p.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return false, ErrAborted
		}
		if err == promptui.ErrAbort {
			return false, nil
		}
		if result == "" {
			return defaultYes, nil
		}
		return false, err
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}

// ConfirmWithForce returns true immediately when force is set, otherwise
// prompts for confirmation — "frostctl connection close --force" skips the
// interactive step entirely.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
