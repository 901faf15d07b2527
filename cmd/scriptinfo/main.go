// scriptinfo 解码一个输出脚本，打印其 JSON 视图、压缩形式与推导出的描述符。
//
//	scriptinfo [--network=mainnet|testnet3|regtest] [--asm] [--compress] [--descriptor] <script>
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-colorable"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
)

// config 命令行选项
type config struct {
	Network    string `short:"n" long:"network" description:"Network used to encode addresses" default:"mainnet"`
	Asm        bool   `long:"asm" description:"Read the script in text notation instead of hex"`
	Compress   bool   `short:"c" long:"compress" description:"Print the compressed storage form of the script"`
	Descriptor bool   `short:"d" long:"descriptor" description:"Print the inferred output descriptor"`

	Args struct {
		Script string `positional-arg-name:"script" required:"true"`
	} `positional-args:"yes"`
}

// output 是命令的 JSON 输出
type output struct {
	txscript.DecodeScriptResult
	Compressed string `json:"compressed,omitempty"`
	Solvable   *bool  `json:"solvable,omitempty"`
}

// parseArgs 解析命令行参数
func parseArgs(args []string) (*config, error) {
	cfg := &config{}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeScript 按选项把输入解析为脚本
func decodeScript(cfg *config) ([]byte, error) {
	if cfg.Asm {
		return txscript.ParseScript(cfg.Args.Script)
	}
	script, err := hex.DecodeString(cfg.Args.Script)
	if err != nil {
		return nil, fmt.Errorf("invalid hex script: %w", err)
	}
	return script, nil
}

// run 执行命令并把结果写到 w
func run(args []string, w io.Writer) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return err
	}
	params, err := netparams.ParamsForNetwork(cfg.Network)
	if err != nil {
		return err
	}
	script, err := decodeScript(cfg)
	if err != nil {
		return err
	}
	logrus.Debugf("decoding %d byte script on %s", len(script), params.Name)

	out := output{DecodeScriptResult: txscript.ScriptToResult(script, params.Params)}
	if cfg.Compress {
		compressed, err := txscript.EncodeCompressedScript(script)
		if err != nil {
			return err
		}
		out.Compressed = hex.EncodeToString(compressed)
	}
	if cfg.Descriptor {
		desc := txscript.InferDescriptor(nil, script, params.Params)
		solvable := desc.IsSolvable()
		out.Desc = desc.String()
		out.Solvable = &solvable
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	logrus.SetOutput(colorable.NewColorableStderr())
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	if err := run(os.Args[1:], os.Stdout); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		logrus.Errorf("scriptinfo: %v", err)
		os.Exit(1)
	}
}
