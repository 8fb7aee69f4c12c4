package scheme

import "errors"

var (
	// ErrUnknownScheme は登録されていないスキーム名が指定された場合のエラー
	ErrUnknownScheme = errors.New("scheme: unknown scheme")

	// ErrInvalidSpec はスキームの引数やパラメータ指定が不正な場合のエラー
	ErrInvalidSpec = errors.New("scheme: invalid parameter spec")

	// ErrUnknownTitle はタイトル表に一致するタイトルがない場合のエラー
	ErrUnknownTitle = errors.New("scheme: no matching title")

	// ErrAmbiguousTitle は複数のタイトルが一致し、選択の手段がない場合のエラー
	ErrAmbiguousTitle = errors.New("scheme: ambiguous title")
)
