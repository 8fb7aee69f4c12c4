package archive

import "errors"

var (
	// ErrInvalidSelection は候補の選択で不正な入力があった場合のエラー
	ErrInvalidSelection = errors.New("不正な選択です")

	// ErrExtractFailed はファイルの展開に失敗した場合のエラー
	ErrExtractFailed = errors.New("ファイルの展開に失敗しました")
)
