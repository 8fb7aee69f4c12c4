package archive

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shiroemons/go-xp3/pkg/scheme"
)

// NewPrompt は候補を out に表示し、in から番号を読み取る scheme.Prompt を返します
func NewPrompt(in io.Reader, out io.Writer) scheme.Prompt {
	sc := bufio.NewScanner(in)
	return func(candidates []scheme.Title) (int, error) {
		fmt.Fprintln(out, "複数のタイトルが候補になりました:")
		for i, t := range candidates {
			fmt.Fprintf(out, "  %d) %s (%s)\n", i+1, t.Name, t.Scheme)
		}
		fmt.Fprintf(out, "番号を選択してください [1-%d]: ", len(candidates))

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("%w: 入力がありません", ErrInvalidSelection)
		}
		n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err != nil || n < 1 || n > len(candidates) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSelection, sc.Text())
		}
		return n - 1, nil
	}
}
