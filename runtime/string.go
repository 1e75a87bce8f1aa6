package runtime

import (
	"strings"

	"github.com/gomrb/gomrb/registry"
	"github.com/gomrb/gomrb/values"
)

func wantString(v *values.Value) (*values.StringBuf, error) {
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	return nil, registry.NewTypeMismatch("no implicit conversion of %s into String", v.Type)
}

func initializeString(ctx registry.CallContext) {
	str := &ctx.GetClassByName("String").Module

	str.DefineMethod("+", registry.NewNativeProc("+", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		lhs, _ := self.AsString()
		rhs, err := wantString(args[0])
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(lhs.Bytes)+len(rhs.Bytes))
		return values.NewStringBytes(append(append(out, lhs.Bytes...), rhs.Bytes...)), nil
	}))

	str.DefineMethod("*", registry.NewNativeProc("*", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		n, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, registry.NewArgumentError("negative argument")
		}
		s, _ := self.AsString()
		out := make([]byte, 0, len(s.Bytes)*int(n))
		for i := int64(0); i < n; i++ {
			out = append(out, s.Bytes...)
		}
		return values.NewStringBytes(out), nil
	}))

	str.DefineMethod("<<", registry.NewNativeProc("<<", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		s, _ := self.AsString()
		rhs, err := wantString(args[0])
		if err != nil {
			return nil, err
		}
		s.Bytes = append(s.Bytes, rhs.Bytes...)
		return self, nil
	}))

	size := registry.NewNativeProc("size", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewInt(int64(len([]rune(string(s.Bytes))))), nil
	})
	str.DefineMethod("size", size)
	str.DefineMethod("length", size)

	str.DefineMethod("bytesize", registry.NewNativeProc("bytesize", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewInt(int64(len(s.Bytes))), nil
	}))

	str.DefineMethod("empty?", registry.NewNativeProc("empty?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewBool(len(s.Bytes) == 0), nil
	}))

	str.DefineMethod("to_s", registry.NewNativeProc("to_s", selfReturning))

	str.DefineMethod("to_sym", registry.NewNativeProc("to_sym", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewSymbol(string(s.Bytes)), nil
	}))

	str.DefineMethod("to_i", registry.NewNativeProc("to_i", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		n := int64(0)
		str := strings.TrimSpace(string(s.Bytes))
		neg := false
		i := 0
		if i < len(str) && (str[i] == '-' || str[i] == '+') {
			neg = str[i] == '-'
			i++
		}
		for ; i < len(str) && str[i] >= '0' && str[i] <= '9'; i++ {
			n = n*10 + int64(str[i]-'0')
		}
		if neg {
			n = -n
		}
		return values.NewInt(n), nil
	}))

	str.DefineMethod("upcase", registry.NewNativeProc("upcase", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewString(strings.ToUpper(string(s.Bytes))), nil
	}))

	str.DefineMethod("downcase", registry.NewNativeProc("downcase", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewString(strings.ToLower(string(s.Bytes))), nil
	}))

	str.DefineMethod("strip", registry.NewNativeProc("strip", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		return values.NewString(strings.TrimSpace(string(s.Bytes))), nil
	}))

	str.DefineMethod("reverse", registry.NewNativeProc("reverse", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		runes := []rune(string(s.Bytes))
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return values.NewString(string(runes)), nil
	}))

	str.DefineMethod("include?", registry.NewNativeProc("include?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		s, _ := self.AsString()
		sub, err := wantString(args[0])
		if err != nil {
			return nil, err
		}
		return values.NewBool(strings.Contains(string(s.Bytes), string(sub.Bytes))), nil
	}))

	str.DefineMethod("start_with?", registry.NewNativeProc("start_with?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		for _, a := range args {
			p, err := wantString(a)
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(string(s.Bytes), string(p.Bytes)) {
				return values.NewBool(true), nil
			}
		}
		return values.NewBool(false), nil
	}))

	str.DefineMethod("end_with?", registry.NewNativeProc("end_with?", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		for _, a := range args {
			p, err := wantString(a)
			if err != nil {
				return nil, err
			}
			if strings.HasSuffix(string(s.Bytes), string(p.Bytes)) {
				return values.NewBool(true), nil
			}
		}
		return values.NewBool(false), nil
	}))

	str.DefineMethod("split", registry.NewNativeProc("split", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		var parts []string
		if len(args) == 0 || args[0].IsNil() {
			parts = strings.Fields(string(s.Bytes))
		} else {
			sep, err := wantString(args[0])
			if err != nil {
				return nil, err
			}
			parts = strings.Split(string(s.Bytes), string(sep.Bytes))
		}
		out := make([]*values.Value, len(parts))
		for i, p := range parts {
			out[i] = values.NewString(p)
		}
		return values.NewArray(out), nil
	}))

	str.DefineMethod("chars", registry.NewNativeProc("chars", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		runes := []rune(string(s.Bytes))
		out := make([]*values.Value, len(runes))
		for i, r := range runes {
			out[i] = values.NewString(string(r))
		}
		return values.NewArray(out), nil
	}))

	sliceMethod := registry.NewNativeProc("slice", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		runes := []rune(string(s.Bytes))
		if len(args) == 0 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1..2)")
		}
		if sub, ok := args[0].AsString(); ok {
			if strings.Contains(string(s.Bytes), string(sub.Bytes)) {
				return values.NewStringBytes(append([]byte(nil), sub.Bytes...)), nil
			}
			return values.Nil(), nil
		}
		start, err := wantInt(args[0])
		if err != nil {
			return nil, err
		}
		if start < 0 {
			start += int64(len(runes))
		}
		if start < 0 || start > int64(len(runes)) {
			return values.Nil(), nil
		}
		if len(args) > 1 {
			n, err := wantInt(args[1])
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return values.Nil(), nil
			}
			end := start + n
			if end > int64(len(runes)) {
				end = int64(len(runes))
			}
			return values.NewString(string(runes[start:end])), nil
		}
		if start == int64(len(runes)) {
			return values.Nil(), nil
		}
		return values.NewString(string(runes[start])), nil
	})
	str.DefineMethod("slice", sliceMethod)
	str.DefineMethod("[]", sliceMethod)

	str.DefineMethod("index", registry.NewNativeProc("index", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return nil, registry.NewArgumentError("wrong number of arguments (given 0, expected 1)")
		}
		s, _ := self.AsString()
		sub, err := wantString(args[0])
		if err != nil {
			return nil, err
		}
		i := strings.Index(string(s.Bytes), string(sub.Bytes))
		if i < 0 {
			return values.Nil(), nil
		}
		return values.NewInt(int64(len([]rune(string(s.Bytes)[:i])))), nil
	}))

	str.DefineMethod("==", registry.NewNativeProc("==", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		if len(args) < 1 {
			return values.NewBool(false), nil
		}
		return values.NewBool(values.Equal(self, args[0])), nil
	}))

	str.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))

	str.DefineMethod("concat", registry.NewNativeProc("concat", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		s, _ := self.AsString()
		for _, a := range args {
			rhs, err := wantString(a)
			if err != nil {
				return nil, err
			}
			s.Bytes = append(s.Bytes, rhs.Bytes...)
		}
		return self, nil
	}))
}

func initializeSymbol(ctx registry.CallContext) {
	sym := &ctx.GetClassByName("Symbol").Module

	sym.DefineMethod("to_s", registry.NewNativeProc("to_s", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		name, _ := self.AsSymbol()
		return values.NewString(name), nil
	}))

	sym.DefineMethod("to_sym", registry.NewNativeProc("to_sym", selfReturning))

	sym.DefineMethod("inspect", registry.NewNativeProc("inspect", func(ctx registry.CallContext, self *values.Value, args []*values.Value) (*values.Value, error) {
		return values.NewString(self.Inspect()), nil
	}))
}
