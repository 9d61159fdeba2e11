package formula

import (
	"context"
	"fmt"
	"math"
)

type parser struct {
	toks []token
	i    int
	keys []string
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expectOp(text string) error {
	if !p.isOp(text) {
		return fmt.Errorf("expected %q, got %s at offset %d", text, p.peek(), p.peek().pos)
	}
	p.next()
	return nil
}

func (p *parser) parseExpr() (evalFn, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *parser) parseTerm() (evalFn, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (evalFn, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return operand, nil
		}
		return func(ctx context.Context, read Reader) (float64, error) {
			v, err := operand(ctx, read)
			return -v, err
		}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (evalFn, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v := t.num
		return func(context.Context, Reader) (float64, error) { return v, nil }, nil
	case tokOp:
		if t.text != "(" {
			return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return inner, p.expectOp(")")
	case tokIdent:
		if t.text == "r" {
			if err := p.expectOp("."); err != nil {
				return nil, err
			}
			method := p.next()
			if method.kind != tokIdent || method.text != "get" {
				return nil, fmt.Errorf("only r.get is allowed, got r.%s", method.text)
			}
			return p.parseRead()
		}
		if t.text == "get" {
			return p.parseRead()
		}
		fn, ok := builtins[t.text]
		if !ok {
			return nil, fmt.Errorf("unknown function %q at offset %d", t.text, t.pos)
		}
		return p.parseCall(t.text, fn)
	default:
		return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
	}
}

func (p *parser) parseRead() (evalFn, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	arg := p.next()
	if arg.kind != tokString {
		return nil, fmt.Errorf("get expects a quoted key, got %s at offset %d", arg, arg.pos)
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	key := arg.text
	p.keys = append(p.keys, key)
	return func(ctx context.Context, read Reader) (float64, error) {
		return read(ctx, key)
	}, nil
}

func (p *parser) parseCall(name string, fn builtin) (evalFn, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var args []evalFn
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.isOp(",") {
			break
		}
		p.next()
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s takes %d..%d arguments, got %d", name, fn.minArgs, fn.maxArgs, len(args))
	}
	return func(ctx context.Context, read Reader) (float64, error) {
		vals := make([]float64, len(args))
		for i, a := range args {
			v, err := a(ctx, read)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		return fn.apply(vals)
	}, nil
}

func binary(op string, left, right evalFn) evalFn {
	return func(ctx context.Context, read Reader) (float64, error) {
		l, err := left(ctx, read)
		if err != nil {
			return 0, err
		}
		r, err := right(ctx, read)
		if err != nil {
			return 0, err
		}
		switch op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			if r == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return l / r, nil
		default:
			if r == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			return math.Mod(l, r), nil
		}
	}
}
