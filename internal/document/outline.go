package document

import (
	"context"
	"fmt"

	rpdf "rsc.io/pdf"
)

const (
	maxOutlineDepth   = 8
	maxOutlineEntries = 5000
)

// outlineEntries walks the PDF bookmark tree. Entries whose destination does
// not resolve to a page are dropped, their children are kept.
func (d *PDF) outlineEntries(ctx context.Context) (entries []tocEntry, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, r, err := openReader(d.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defer func() {
		if rec := recover(); rec != nil {
			entries, err = nil, fmt.Errorf("read outline: %v", rec)
		}
	}()

	root := r.Trailer().Key("Root")
	first := root.Key("Outlines").Key("First")
	if first.IsNull() {
		return nil, nil
	}
	w := &outlineWalker{root: root, pages: pageIndex(r), budget: maxOutlineEntries}
	w.walk(first, 1, &entries)
	return entries, nil
}

// pageIndex maps a page object's rendering to its 1-based position. Values
// print nested references as "n g R", so the rendering identifies the object.
func pageIndex(r *rpdf.Reader) map[string]int {
	n := r.NumPage()
	idx := make(map[string]int, n)
	for i := 1; i <= n; i++ {
		key := r.Page(i).V.String()
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

type outlineWalker struct {
	root   rpdf.Value
	pages  map[string]int
	budget int
}

func (w *outlineWalker) walk(node rpdf.Value, depth int, out *[]tocEntry) {
	for n := node; !n.IsNull() && w.budget > 0; n = n.Key("Next") {
		w.budget--
		title := cleanTitle(n.Key("Title").Text())
		if page := w.destPage(n); title != "" && page > 0 {
			*out = append(*out, tocEntry{Title: title, Page: page, Depth: depth})
		}
		if kid := n.Key("First"); !kid.IsNull() && depth < maxOutlineDepth {
			w.walk(kid, depth+1, out)
		}
	}
}

func (w *outlineWalker) destPage(item rpdf.Value) int {
	dest := item.Key("Dest")
	if dest.IsNull() {
		if a := item.Key("A"); a.Key("S").Name() == "GoTo" {
			dest = a.Key("D")
		}
	}
	return w.resolve(dest, 0)
}

func (w *outlineWalker) resolve(dest rpdf.Value, hops int) int {
	if hops > 4 {
		return 0
	}
	switch dest.Kind() {
	case rpdf.Array:
		if dest.Len() == 0 {
			return 0
		}
		target := dest.Index(0)
		if target.Kind() == rpdf.Integer {
			return int(target.Int64()) + 1
		}
		return w.pages[target.String()]
	case rpdf.Dict:
		return w.resolve(dest.Key("D"), hops+1)
	case rpdf.Name:
		return w.resolve(w.named(dest.Name()), hops+1)
	case rpdf.String:
		return w.resolve(w.named(dest.RawString()), hops+1)
	default:
		return 0
	}
}

// named looks a destination up in the catalog's Dests dictionary, then in the
// Dests name tree.
func (w *outlineWalker) named(name string) rpdf.Value {
	if v := w.root.Key("Dests").Key(name); !v.IsNull() {
		return v
	}
	return lookupNameTree(w.root.Key("Names").Key("Dests"), name, 0)
}

func lookupNameTree(node rpdf.Value, name string, depth int) rpdf.Value {
	if node.IsNull() || depth > 32 {
		return rpdf.Value{}
	}
	if names := node.Key("Names"); names.Kind() == rpdf.Array {
		for i := 0; i+1 < names.Len(); i += 2 {
			if names.Index(i).RawString() == name {
				return names.Index(i + 1)
			}
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		kid := kids.Index(i)
		if lim := kid.Key("Limits"); lim.Len() == 2 {
			if name < lim.Index(0).RawString() || name > lim.Index(1).RawString() {
				continue
			}
		}
		if v := lookupNameTree(kid, name, depth+1); !v.IsNull() {
			return v
		}
	}
	return rpdf.Value{}
}
