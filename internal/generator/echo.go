package generator

import "context"

// Echo は受け取ったプロンプトをそのまま返す。
// APIキーなしでのローカル開発とE2Eテストに使う。
type Echo struct {
	Prefix string
}

// Generate はPrefixを付けたpromptを返す。
func (e Echo) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Prefix + prompt, nil
}

// Name はバックエンド名を返す。
func (e Echo) Name() string {
	return "echo"
}
