package tui

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
)

// ErrInteractiveDisabled is returned when a prompt is needed but no terminal
// is attached, or KURT_NO_INTERACTIVE is set
var ErrInteractiveDisabled = fmt.Errorf("interactive prompts are disabled; pass --yes to confirm")

// Confirm asks a yes/no question, defaulting to no
func Confirm(message string) (bool, error) {
	if os.Getenv("KURT_NO_INTERACTIVE") != "" || !IsTTY() {
		return false, ErrInteractiveDisabled
	}
	answer := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}
	return answer, nil
}
