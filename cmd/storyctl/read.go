package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"story-server/internal/storygraph"
)

// runReader ведет чтение истории по строкам из in: номер выбора, r - начать
// заново, q - выйти. Конец ввода завершает чтение без ошибки.
func runReader(ctx context.Context, r *storygraph.Reader, in io.Reader, out io.Writer) error {
	lines := bufio.NewReader(in)
	showPage := true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if showPage {
			printPage(out, r)
		}
		showPage = true

		if r.Ended() {
			fmt.Fprint(out, "[r] restart  [q] quit > ")
		} else {
			fmt.Fprint(out, "> ")
		}
		line, err := readLine(lines)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
		case "q", "quit":
			return nil
		case "r", "restart":
			r.Restart()
			continue
		case "":
			showPage = false
			continue
		default:
			n, convErr := strconv.Atoi(cmd)
			if convErr != nil {
				fmt.Fprintln(out, "Enter a choice number, r or q")
				showPage = false
				continue
			}
			if err := r.ChooseAt(n - 1); err != nil {
				fmt.Fprintln(out, describeReadError(err))
				showPage = false
			}
		}
	}
}

func printPage(out io.Writer, r *storygraph.Reader) {
	page := r.Current()
	fmt.Fprintf(out, "\n%s\n\n", page.Text)
	if page.IsEnding {
		fmt.Fprintln(out, "-- The End --")
		return
	}
	for i, opt := range page.Options {
		fmt.Fprintf(out, "  %d. %s\n", i+1, opt.Text)
	}
}

func describeReadError(err error) string {
	switch {
	case errors.Is(err, storygraph.ErrUnknownChoice):
		return "There is no such choice"
	case errors.Is(err, storygraph.ErrDanglingChoice):
		return "This choice leads nowhere, pick another one"
	case errors.Is(err, storygraph.ErrStoryEnded):
		return "The story has ended"
	default:
		return err.Error()
	}
}
