package pysyntax

import "testing"

func TestCheckAcceptsCode(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{name: "expression", src: "print(1+1)"},
		{name: "assignment", src: "result = df.shape[0]\nprint(result)"},
		{name: "import and call", src: "import pandas as pd\ndf = pd.read_csv('data.csv')\nprint(df.head())"},
		{name: "if block", src: "if len(df) > 0:\n    print('not empty')\nelse:\n    print('empty')"},
		{name: "for block", src: "total = 0\nfor value in values:\n    total += value\nprint(total)"},
		{name: "function", src: "def area(w, h):\n    return w * h\nprint(area(3, 4))"},
		{name: "multiline call", src: "result = df.groupby(\n    'region'\n).sum()\nprint(result)"},
		{name: "string with keywords", src: "print('this is not code at all')"},
		{name: "comment lines", src: "# load data\nresult = df.mean()  # column means\nprint(result)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Check(tc.src); err != nil {
				t.Fatalf("expected valid code, got %v", err)
			}
		})
	}
}

func TestCheckRejectsNonCode(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{name: "empty", src: ""},
		{name: "whitespace only", src: "   \n\t\n"},
		{name: "prose", src: "not code at all"},
		{name: "sentence", src: "The dataset contains 42 rows in total."},
		{name: "unbalanced paren", src: "print(df.head("},
		{name: "unclosed string", src: "print('hello)"},
		{name: "missing colon", src: "if len(df) > 0\n    print('x')"},
		{name: "dangling indent", src: "print(1)\n    print(2)"},
		{name: "closing without opening", src: "result = df.sum())"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Check(tc.src); err == nil {
				t.Fatalf("expected error for %q", tc.src)
			}
		})
	}
}
