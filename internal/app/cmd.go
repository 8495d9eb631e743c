package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はtaskmanのサブコマンド。
type Command string

const (
	// CommandServe はHTTP APIを提供する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker は期限切れリフレッシュトークンの定期削除を行う。
	CommandWorker Command = "worker"
	// CommandMigrate は組み込みスキーマを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。usage表示の順序でもある。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ErrUnknownCommand は未知のサブコマンドが指定されたことを表す。
var ErrUnknownCommand = errors.New("unknown command")

// Usage はサブコマンドの一覧を含む使い方の文字列を返す。
func Usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "usage: taskman [" + strings.Join(names, "|") + "]"
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 残りの引数は無視する。打ち間違いでサーバーが起動しないよう、未知の名前はエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q; %s", ErrUnknownCommand, args[0], Usage())
}
