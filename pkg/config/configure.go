package config

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
)

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
}

func iterateConfiguration(conf *Config) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, -1}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get("yaml")
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

func findFieldByName(conf *Config, name string) reflect.Value {
	it := iterateConfiguration(conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.Value{}
}

// List writes every option and its current value to w.
func (c *Config) List(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	it := iterateConfiguration(c)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		switch {
		case field.Kind() == reflect.Ptr && field.IsNil():
			fmt.Fprintf(tw, "%s\t<not defined>\n", fieldName)
		case field.Kind() == reflect.Ptr:
			fmt.Fprintf(tw, "%s\t%v\n", fieldName, field.Elem())
		case field.Kind() == reflect.Slice:
			fmt.Fprintf(tw, "%s\t%q\n", fieldName, field.Interface())
		default:
			fmt.Fprintf(tw, "%s\t%v\n", fieldName, field)
		}
	}
	return tw.Flush()
}

// Set assigns an option from a command line of the form "name value...",
// split the way a shell would.
func (c *Config) Set(args string) error {
	words, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("wrong number of arguments to \"config\"")
	}
	return c.SetValues(words[0], words[1:])
}

// SetValues assigns the option called name. List options take every
// value and an empty list clears them; other options take exactly one.
func (c *Config) SetValues(name string, values []string) error {
	field := findFieldByName(c, name)
	if !field.CanAddr() {
		return fmt.Errorf("%q is not a configuration parameter", name)
	}

	if field.Kind() == reflect.Slice {
		if len(values) == 0 {
			values = nil
		}
		field.Set(reflect.ValueOf(values))
		return nil
	}
	if len(values) != 1 {
		return fmt.Errorf("wrong number of arguments to %q", name)
	}
	arg := values[0]

	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(arg)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("argument to %q must be a number", name)
			}
			if n <= 0 {
				return reflect.Value{}, fmt.Errorf("argument to %q must be a number greater than zero", name)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			v := arg == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			return reflect.ValueOf(&arg), nil
		default:
			return reflect.Value{}, fmt.Errorf("unsupported type for configuration key %q", name)
		}
	}

	if field.Kind() == reflect.Ptr {
		val, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(val)
	} else {
		val, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	return nil
}

func splitArgs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	v, err := argv.Argv(s,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("pipes are not supported")
	}
	return v[0], nil
}
