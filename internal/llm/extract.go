package llm

import (
	"regexp"
	"strings"

	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/llm/pysyntax"
)

// DefaultSeparator 是模型响应中代码块的默认围栏标记。
const DefaultSeparator = "```"

var (
	leadingLangTag  = regexp.MustCompile(`^(python|py)`)
	wrappedBacktick = regexp.MustCompile("^`(.*)`$")
)

// ExtractCode 从模型响应中提取可执行的 Python 代码。
//
// 若响应中包含围栏标记，取第一个标记之后的片段作为候选代码；
// 否则将整段响应作为候选。候选代码经过修整后必须通过语法检查，
// 不通过时返回 ErrNoCodeFound。
func ExtractCode(response, separator string) (string, error) {
	if separator == "" {
		separator = DefaultSeparator
	}

	code := response
	if strings.Contains(response, separator) {
		if parts := strings.Split(response, separator); len(parts) > 1 {
			// 只取第一对围栏之间的内容，后续的围栏一律忽略。
			code = parts[1]
		}
	}
	code = polishCode(code)

	// 即使没有围栏标记，响应本身也可能就是合法代码。
	if err := pysyntax.Check(code); err != nil {
		return "", xerrors.Wrap(CodeNoCodeFound, err, "no code found in the response")
	}
	return code, nil
}

// polishCode 去掉候选代码开头的语言标记、包裹的反引号以及首尾空白。
func polishCode(code string) string {
	if leadingLangTag.MatchString(code) {
		code = leadingLangTag.ReplaceAllString(code, "")
	}
	if wrappedBacktick.MatchString(code) {
		code = wrappedBacktick.ReplaceAllString(code, "$1")
	}
	return strings.TrimSpace(code)
}
