package tokens

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/pkg/lexer"
	"github.com/walteh/rulesls/pkg/position"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "print the token stream of a rules file",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Errorf("reading %s: %w", args[0], err)
		}
		return Print(cmd.OutOrStdout(), string(data))
	}

	return cmd
}

// Print writes one token per line with its one based position and byte
// offset.
func Print(w io.Writer, text string) error {
	for _, tok := range lexer.Tokenize(text) {
		offset := position.OffsetOf(text, position.Place{Line: tok.Line, Character: tok.Column})
		if _, err := fmt.Fprintf(w, "%d:%d\t#%d\t%s\t%q\n", tok.Line+1, tok.Column+1, offset, tok.Kind, tok.Value); err != nil {
			return errors.Errorf("writing tokens: %w", err)
		}
	}
	return nil
}
