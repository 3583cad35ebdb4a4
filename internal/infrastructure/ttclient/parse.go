package ttclient

import "strconv"

// params holds the key=value pairs of one protocol line.
type params map[string]string

func (p params) stringValue(key string) string { return p[key] }

func (p params) intValue(key string) int {
	n, err := strconv.Atoi(p[key])
	if err != nil {
		return 0
	}
	return n
}

// parseLine splits a protocol line into its keyword and parameters. String
// values are double-quoted with backslash escapes; everything else is taken
// verbatim up to the next space.
func parseLine(line string) (string, params) {
	i := 0
	keyword := scanToken(line, &i)
	values := make(params)

	for i < len(line) {
		skipSpaces(line, &i)
		if i >= len(line) {
			break
		}
		key := scanUntil(line, &i, '=')
		if i >= len(line) || line[i] != '=' {
			break
		}
		i++ // '='
		if i < len(line) && line[i] == '"' {
			values[key] = scanQuoted(line, &i)
		} else {
			values[key] = scanToken(line, &i)
		}
	}
	return keyword, values
}

func skipSpaces(line string, i *int) {
	for *i < len(line) && line[*i] == ' ' {
		*i++
	}
}

func scanToken(line string, i *int) string {
	start := *i
	for *i < len(line) && line[*i] != ' ' {
		*i++
	}
	return line[start:*i]
}

func scanUntil(line string, i *int, stop byte) string {
	start := *i
	for *i < len(line) && line[*i] != stop && line[*i] != ' ' {
		*i++
	}
	return line[start:*i]
}

func scanQuoted(line string, i *int) string {
	*i++ // opening quote
	var out []byte
	for *i < len(line) {
		ch := line[*i]
		if ch == '\\' && *i+1 < len(line) {
			*i += 2
			out = append(out, line[*i-1])
			continue
		}
		if ch == '"' {
			*i++
			break
		}
		out = append(out, ch)
		*i++
	}
	return string(out)
}
