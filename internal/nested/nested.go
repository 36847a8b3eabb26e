// Package nested turns the flat path-to-value map produced by the parser back
// into a tree of records, zipping the parallel columns of every list of
// records into a list of records.
package nested

import (
	"fmt"
	"reflect"
	"strings"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/record"
)

// Options selects the zip policy.
type Options struct {
	// Lists maps every list-of-records path to its nesting level. Only those
	// nodes are zipped, whatever their number of columns.
	Lists map[string]int

	// Heuristic ignores Lists and zips every non-root node whose children are
	// all lists, provided it has more than one child or ZipSingleKey is set.
	Heuristic    bool
	ZipSingleKey bool
}

// Reconstruct builds the record tree for flat and zips it.
func Reconstruct(flat map[string]any, opts Options) (record.Record, error) {
	tree := BuildTree(flat)
	var err error
	if opts.Heuristic {
		err = ZipHeuristic(tree, opts.ZipSingleKey)
	} else {
		err = Zip(tree, opts.Lists)
	}
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// BuildTree splits every dotted key and inserts its value into a tree of
// records, creating intermediate records as needed.
func BuildTree(flat map[string]any) record.Record {
	root := make(record.Record)
	for key, value := range flat {
		if !strings.Contains(key, ".") {
			root[key] = value
			continue
		}
		parts := strings.Split(key, ".")
		node := root
		for _, p := range parts[:len(parts)-1] {
			next, ok := node[p].(record.Record)
			if !ok {
				next = make(record.Record)
				node[p] = next
			}
			node = next
		}
		node[parts[len(parts)-1]] = value
	}
	return root
}

// Zip replaces the record at each path in lists with a list of records, one
// per index of its columns. Lists nested inside elements are zipped within
// each synthesized record.
func Zip(tree record.Record, lists map[string]int) error {
	if len(lists) == 0 {
		return nil
	}
	return zipLists(tree, "", "", lists)
}

// zipLists walks node. prefix is the schema path of node and where the same
// path with element indexes, used in errors.
func zipLists(node record.Record, prefix, where string, lists map[string]int) error {
	for k, child := range node {
		sub, ok := child.(record.Record)
		if !ok {
			continue
		}
		path, at := join(prefix, k), join(where, k)
		if _, ok := lists[path]; !ok {
			if err := zipLists(sub, path, at, lists); err != nil {
				return err
			}
			continue
		}
		zipped, err := zipColumns(sub, path, at, lists)
		if err != nil {
			return err
		}
		node[k] = zipped
	}
	return nil
}

func zipColumns(cols record.Record, path, where string, lists map[string]int) ([]any, error) {
	lengths := make(map[string]int)
	columnLengths(cols, "", lengths)
	n, err := commonLength(where, lengths)
	if err != nil {
		return nil, err
	}

	out := make([]any, n)
	for i := 0; i < n; i++ {
		elem := pick(cols, i)
		if err := zipLists(elem, path, fmt.Sprintf("%s[%d]", where, i), lists); err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

// columnLengths records the length of every column under cols, descending
// into records nested in the element. Non-list leaves are recorded as -1.
func columnLengths(cols record.Record, prefix string, into map[string]int) {
	for k, v := range cols {
		name := join(prefix, k)
		if sub, ok := v.(record.Record); ok {
			columnLengths(sub, name, into)
			continue
		}
		into[name] = listLen(v)
	}
}

func commonLength(where string, lengths map[string]int) (int, error) {
	n := -1
	for _, l := range lengths {
		if l < 0 || (n >= 0 && l != n) {
			return 0, &bynerr.LengthMismatchError{Path: where, Lengths: lengths}
		}
		n = l
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// pick builds element i from the columns under cols.
func pick(cols record.Record, i int) record.Record {
	out := make(record.Record, len(cols))
	for k, v := range cols {
		if sub, ok := v.(record.Record); ok {
			out[k] = pick(sub, i)
			continue
		}
		out[k] = listAt(v, i)
	}
	return out
}

// ZipHeuristic zips bottom-up, depth-first: any node below the root whose
// children are all lists becomes a list of records when it has more than one
// child, or exactly one and zipSingleKey is set. A node with a single list
// child is otherwise left as is.
func ZipHeuristic(tree record.Record, zipSingleKey bool) error {
	for k, child := range tree {
		v, err := normalize(child, k, zipSingleKey)
		if err != nil {
			return err
		}
		tree[k] = v
	}
	return nil
}

func normalize(v any, where string, single bool) (any, error) {
	if l, ok := v.([]any); ok {
		for i, e := range l {
			x, err := normalize(e, where, single)
			if err != nil {
				return nil, err
			}
			l[i] = x
		}
		return l, nil
	}

	node, ok := v.(record.Record)
	if !ok {
		return v, nil
	}
	for k, child := range node {
		x, err := normalize(child, join(where, k), single)
		if err != nil {
			return nil, err
		}
		node[k] = x
	}
	if len(node) == 0 || (len(node) == 1 && !single) {
		return node, nil
	}

	lengths := make(map[string]int, len(node))
	for k, child := range node {
		if !record.IsList(child) {
			return node, nil
		}
		lengths[k] = listLen(child)
	}
	n, err := commonLength(where, lengths)
	if err != nil {
		return nil, err
	}

	out := make([]any, n)
	for i := 0; i < n; i++ {
		entry := make(record.Record, len(node))
		for k, child := range node {
			entry[k] = listAt(child, i)
		}
		x, err := normalize(entry, fmt.Sprintf("%s[%d]", where, i), single)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func listLen(v any) int {
	if l, ok := v.([]any); ok {
		return len(l)
	}
	if !record.IsList(v) {
		return -1
	}
	return reflect.ValueOf(v).Len()
}

func listAt(v any, i int) any {
	if l, ok := v.([]any); ok {
		return l[i]
	}
	return reflect.ValueOf(v).Index(i).Interface()
}
