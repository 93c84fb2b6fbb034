package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jllopis/skillsloop/pkg/core"
)

// chatter runs one session for a prompt.
type chatter interface {
	Chat(ctx context.Context, prompt string, onStep core.StepFunc) (string, error)
}

func isExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "salir":
		return true
	}
	return false
}

// repl reads prompts line by line until an exit word, EOF or cancellation.
// A cancelled session ends the loop; other errors are printed and the loop
// continues.
func repl(ctx context.Context, in io.Reader, out io.Writer, c chatter) error {
	reader := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(out, styles.prompt.Render("You: "))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if isExit(input) {
			fmt.Fprintln(out, styles.info.Render("Goodbye."))
			return nil
		}
		if input == "" {
			continue
		}

		answer, err := c.Chat(ctx, input, func(step int, action core.Action) {
			printStep(out, step, action)
		})
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out, styles.info.Render("Interrupted."))
				return nil
			}
			printError(out, err)
			continue
		}
		printAnswer(out, answer)
	}
}
