package app

import "fmt"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandWorker はいいねカウンタ監査とセッション掃除のワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの/healthを叩いて終了する。
	// distrolessイメージにはcurlがないためDockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

// Usage はサブコマンドの一覧。
const Usage = "usage: socialfeed [serve|worker|migrate|healthcheck]"

var commands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage)
	}
	return cmd, nil
}
