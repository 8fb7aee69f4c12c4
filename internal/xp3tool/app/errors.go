package app

import "errors"

var (
	// ErrOpenArchive はアーカイブを開けなかった場合のエラー
	ErrOpenArchive = errors.New("アーカイブを開けませんでした")

	// ErrExtract は抽出中にエラーが発生した場合のエラー
	ErrExtract = errors.New("抽出処理中にエラーが発生しました")
)
