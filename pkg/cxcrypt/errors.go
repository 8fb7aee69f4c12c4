package cxcrypt

import "errors"

var (
	// ErrControlBlockIndex はプログラムが制御ブロックの範囲外を参照した場合のエラー
	ErrControlBlockIndex = errors.New("cxcrypt: control block index out of range")

	// ErrProgramTooLarge は最短の段数でもプログラムが長さの上限を超えた場合のエラー
	ErrProgramTooLarge = errors.New("cxcrypt: key program exceeds length limit")

	// ErrNoReturn はプログラムが RETN に到達しなかった場合のエラー
	ErrNoReturn = errors.New("cxcrypt: key program has no return")

	// ErrStackImbalance はスタックの PUSH と POP が対応しない場合のエラー
	ErrStackImbalance = errors.New("cxcrypt: key program stack imbalance")

	// ErrUnknownOpcode は未知の命令を実行しようとした場合のエラー
	ErrUnknownOpcode = errors.New("cxcrypt: unknown opcode")

	// ErrControlBlockNotFound はプラグインモジュールに制御ブロックの識別子がない場合のエラー
	ErrControlBlockNotFound = errors.New("cxcrypt: control block signature not found")

	// ErrSpanTooLong は鍵ストリームの区間が ChaCha20 のカウンタの範囲を超える場合のエラー
	ErrSpanTooLong = errors.New("cxcrypt: keystream span too long")

	// ErrInvalidOrder は分岐の順序表が不正な場合のエラー
	ErrInvalidOrder = errors.New("cxcrypt: invalid branch order")
)
