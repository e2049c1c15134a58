package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	confirmationSuffixConstant      = " [y/N]: "
	affirmativeShortResponse        = "y"
	affirmativeLongResponse         = "yes"
	declinedErrorTemplateConstant   = "%s: %w"
	requiredErrorTemplateConstant   = "%s: %w"
	confirmationRequiredMessage     = "confirmation required; rerun with --yes"
	confirmationDeclinedMessage     = "operation cancelled"
	readConfirmationErrorMessage    = "failed to read confirmation"
	writeConfirmationPromptTemplate = "failed to write confirmation prompt: %w"
)

var (
	// ErrConfirmationRequired indicates a destructive operation ran without a terminal and without --yes.
	ErrConfirmationRequired = errors.New(confirmationRequiredMessage)
	// ErrConfirmationDeclined indicates the operator answered anything but yes.
	ErrConfirmationDeclined = errors.New(confirmationDeclinedMessage)
)

// TerminalDetector reports whether input is attached to an interactive terminal.
type TerminalDetector func(input io.Reader) bool

// IsTerminal reports whether input is a terminal file descriptor.
func IsTerminal(input io.Reader) bool {
	inputFile, isFile := input.(*os.File)
	if !isFile {
		return false
	}
	return term.IsTerminal(int(inputFile.Fd()))
}

// IOConfirmationPrompter reads confirmation responses from an io.Reader.
type IOConfirmationPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewIOConfirmationPrompter constructs a prompter from the provided reader and writer.
func NewIOConfirmationPrompter(input io.Reader, output io.Writer) *IOConfirmationPrompter {
	return &IOConfirmationPrompter{reader: bufio.NewReader(input), writer: output}
}

// Confirm writes the prompt and interprets affirmative responses (y/yes).
func (prompter *IOConfirmationPrompter) Confirm(prompt string) (bool, error) {
	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return false, fmt.Errorf(writeConfirmationPromptTemplate, writeError)
		}
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil && !errors.Is(readError, io.EOF) {
		return false, fmt.Errorf("%s: %w", readConfirmationErrorMessage, readError)
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case affirmativeShortResponse, affirmativeLongResponse:
		return true, nil
	default:
		return false, nil
	}
}

// Gate decides whether a destructive operation may proceed.
type Gate struct {
	prompter    *IOConfirmationPrompter
	assumeYes   bool
	interactive bool
}

// NewGate builds a gate; assumeYes short-circuits every question.
func NewGate(input io.Reader, output io.Writer, assumeYes bool, detector TerminalDetector) *Gate {
	if detector == nil {
		detector = IsTerminal
	}
	return &Gate{
		prompter:    NewIOConfirmationPrompter(input, output),
		assumeYes:   assumeYes,
		interactive: input != nil && detector(input),
	}
}

// Require asks question and returns nil only when the operation is confirmed.
func (gate *Gate) Require(question string) error {
	if gate == nil || gate.assumeYes {
		return nil
	}
	if !gate.interactive {
		return fmt.Errorf(requiredErrorTemplateConstant, question, ErrConfirmationRequired)
	}

	confirmed, confirmError := gate.prompter.Confirm(question + confirmationSuffixConstant)
	if confirmError != nil {
		return confirmError
	}
	if !confirmed {
		return fmt.Errorf(declinedErrorTemplateConstant, question, ErrConfirmationDeclined)
	}
	return nil
}
