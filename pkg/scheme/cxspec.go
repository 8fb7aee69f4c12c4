package scheme

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/cxcrypt"
)

// ParseCxSpec は "mask=0x1ff,offset=0x3db,prolog=012,odd=012345,even=01234567,rng=lcg" 形式の
// パラメータ指定を解析します。省略した項目は cxcrypt.DefaultParams の値になります。
//
// 使用できる項目:
//
//	mask, offset       分割位置 (hash & mask) + offset
//	prolog, odd, even  分岐の順序表 (各桁が1要素)
//	rng                生成器 (lcg, mt, dual)
//	seed2              dual 生成器の第2状態語
//	header             Hx のヘッダ鍵の値
//	namekey            Hx の名前スクランブルの鍵
func ParseCxSpec(spec string) (cxcrypt.HxParams, error) {
	params := cxcrypt.HxParams{Params: cxcrypt.DefaultParams}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return params, nil
	}

	for _, field := range strings.Split(spec, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			return params, fmt.Errorf("%w: %q is not key=value", ErrInvalidSpec, field)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "mask":
			params.Mask, err = parseUint32(value)
		case "offset":
			params.Offset, err = parseUint32(value)
		case "prolog":
			err = parseOrder(value, params.Orders.Prolog[:])
		case "odd":
			err = parseOrder(value, params.Orders.Odd[:])
		case "even":
			err = parseOrder(value, params.Orders.Even[:])
		case "rng":
			params.Generator, err = crypto.ParseGeneratorKind(strings.ToLower(value))
		case "seed2":
			params.Seed2, err = parseUint32(value)
		case "header":
			params.HeaderSeed, err = parseUint32(value)
		case "namekey":
			params.NameKey, err = parseUint32(value)
		default:
			err = fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return params, fmt.Errorf("%w: %s: %w", ErrInvalidSpec, key, err)
		}
	}
	if err := params.Orders.Validate(); err != nil {
		return params, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	return params, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseOrder(s string, order []byte) error {
	if len(s) != len(order) {
		return fmt.Errorf("need %d digits, got %q", len(order), s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("invalid digit %q", s[i])
		}
		order[i] = s[i] - '0'
	}
	return nil
}
