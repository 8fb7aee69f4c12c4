// Package config は xp3tool コマンドの設定管理を行います
package config

import (
	"strings"

	"github.com/shiroemons/go-xp3/pkg/scheme"
)

// Version は xp3tool のバージョン
const Version = "0.1.0"

// Config はすべてのコマンドで共通の設定を保持します
type Config struct {
	LogLevel  string `default:"info"    enum:"debug,info,warn,error" help:"Sets the minimum severity level for log messages"`
	LogOutput string `default:"console" enum:"console,stdout,stderr,json" help:"Specifies the format for log output"`

	Scheme string `short:"s" help:"Decryption scheme (name or name:arg). Detected from the game directory when omitted"`
	Names  string `type:"path" help:"Path to a name list file mapping stored names to real names"`
	Plugin string `name:"tpm" type:"path" help:"Path to the plugin module holding the encryption control block"`
	Cx     string `help:"Custom Cx/Hx parameter spec (e.g. mask=0x1ff,offset=0x3db,prolog=012)"`
}

// cxSchemes はパラメータ指定を受け付けるスキーム
var cxSchemes = []string{"cx", "hx", "hxlite"}

// SchemeSpec は --cx の指定を反映したスキームの指定文字列を返します。
// 引数付きで指定されたスキームはそのまま返します。
func (c *Config) SchemeSpec() string {
	if c.Scheme == "" || c.Cx == "" || strings.Contains(c.Scheme, ":") {
		return c.Scheme
	}
	for _, name := range cxSchemes {
		if strings.EqualFold(c.Scheme, name) {
			return c.Scheme + ":" + c.Cx
		}
	}
	return c.Scheme
}

// SchemeOptions はスキームの作成時に渡すオプションを返します
func (c *Config) SchemeOptions() []scheme.Option {
	var opts []scheme.Option
	if c.Plugin != "" {
		opts = append(opts, scheme.WithPlugin(c.Plugin))
	}
	return opts
}
