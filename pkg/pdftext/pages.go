package pdftext

import (
	"bytes"
	"regexp"
	"slices"
)

type font struct {
	composite bool
	cmap      *CMap
}

type page struct {
	resources dict
	contents  any
	fonts     map[string]*font
	// fallback lists the CMaps tried for text shown with an unresolved font,
	// ordered by font resource name.
	fallback []*CMap
}

const maxPageTreeNodes = 100_000

// discoverPages walks the page tree from the document catalog. When the tree
// cannot be resolved, every /Type /Page object is used in object id order.
func (d *Document) discoverPages() {
	if root := d.catalog(); root != nil {
		d.walkPageTree(root["Pages"])
	}
	if len(d.pages) == 0 {
		for _, id := range d.ids {
			obj := d.objects[id]
			if obj.dict()["Type"] != name("Page") {
				continue
			}
			d.pages = append(d.pages, &page{
				resources: d.inheritedResources(obj.dict()),
				contents:  obj.dict()["Contents"],
			})
		}
	}
	for _, p := range d.pages {
		d.loadFonts(p)
	}
}

var trailerRoot = regexp.MustCompile(`trailer\s*<<`)

func (d *Document) catalog() dict {
	var rootRef any
	for _, loc := range trailerRoot.FindAllIndex(d.data, -1) {
		lex := newLexer(d.data, d.budget, d.opts.MaxTokens)
		lex.pos = loc[1] - 2
		if v, ok := d.parseValue(lex, lex.next(), 0); ok {
			if tr, ok := v.(dict); ok && tr["Root"] != nil {
				rootRef = tr["Root"]
			}
		}
	}
	if rootRef == nil {
		for _, id := range d.ids {
			if obj := d.objects[id]; obj.dict()["Type"] == name("XRef") && obj.dict()["Root"] != nil {
				rootRef = obj.dict()["Root"]
			}
		}
	}
	if root := d.resolveDict(rootRef); root != nil && root["Pages"] != nil {
		return root
	}
	for i := len(d.ids) - 1; i >= 0; i-- {
		if obj := d.objects[d.ids[i]]; obj.dict()["Type"] == name("Catalog") {
			return obj.dict()
		}
	}
	return nil
}

// walkPageTree visits the tree depth first without recursion so that deep
// or cyclic trees cannot exhaust the stack.
func (d *Document) walkPageTree(rootRef any) {
	type node struct {
		ref       any
		resources dict
	}
	visited := make(map[int]bool)
	stack := []node{{ref: rootRef}}

	for len(stack) > 0 && len(visited) < maxPageTreeNodes {
		if d.budget.expired() {
			d.truncated = true
			return
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if r, ok := n.ref.(ref); ok {
			if visited[r.id] {
				continue
			}
			visited[r.id] = true
		}
		nd := d.resolveDict(n.ref)
		if nd == nil {
			continue
		}

		resources := n.resources
		if res := d.resolveDict(nd["Resources"]); res != nil {
			resources = res
		}

		kids, isTree := d.resolve(nd["Kids"]).(array)
		if nd["Type"] == name("Page") || (!isTree && nd["Contents"] != nil) {
			d.pages = append(d.pages, &page{resources: resources, contents: nd["Contents"]})
			continue
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, node{ref: kids[i], resources: resources})
		}
	}
}

func (d *Document) inheritedResources(pd dict) dict {
	for range maxRefChain {
		if pd == nil {
			return nil
		}
		if res := d.resolveDict(pd["Resources"]); res != nil {
			return res
		}
		pd = d.resolveDict(pd["Parent"])
	}
	return nil
}

func (d *Document) loadFonts(p *page) {
	p.fonts = make(map[string]*font)
	fonts := d.resolveDict(p.resources["Font"])
	resNames := make([]string, 0, len(fonts))
	for resName := range fonts {
		resNames = append(resNames, resName)
	}
	slices.Sort(resNames)

	for _, resName := range resNames {
		fd := d.resolveDict(fonts[resName])
		if fd == nil {
			continue
		}
		f := &font{
			composite: fd["Subtype"] == name("Type0"),
			cmap:      d.toUnicode(fd["ToUnicode"]),
		}
		p.fonts[resName] = f
		if f.cmap != nil {
			p.fallback = append(p.fallback, f.cmap)
		}
	}
}

func (d *Document) toUnicode(v any) *CMap {
	obj := d.resolveObject(v)
	if obj == nil {
		return nil
	}
	if m, ok := d.cmaps[obj.id]; ok {
		return m
	}
	m := parseCMap(d.streamData(obj, false), d.budget)
	d.cmaps[obj.id] = m
	return m
}

// documentCMaps returns every ToUnicode-style CMap stream in the file in
// object id order.
func (d *Document) documentCMaps() []*CMap {
	var out []*CMap
	for _, id := range d.ids {
		obj := d.objects[id]
		if obj.stream == nil {
			continue
		}
		if m, ok := d.cmaps[id]; ok {
			if m != nil {
				out = append(out, m)
			}
			continue
		}
		data := d.streamData(obj, false)
		if !bytes.Contains(data, []byte("begincmap")) {
			continue
		}
		m := parseCMap(data, d.budget)
		d.cmaps[id] = m
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// pageContent concatenates the decoded content streams of p.
func (d *Document) pageContent(p *page) []byte {
	var parts [][]byte
	switch c := d.resolve(p.contents).(type) {
	case array:
		for _, item := range c {
			if data := d.streamData(d.resolveObject(item), true); len(data) > 0 {
				parts = append(parts, data)
			}
		}
	default:
		if data := d.streamData(d.resolveObject(p.contents), true); len(data) > 0 {
			parts = append(parts, data)
		}
	}
	return bytes.Join(parts, []byte("\n"))
}

var rawStream = regexp.MustCompile(`stream\r?\n`)

// lastResort interprets every stream in the file that holds text objects,
// scanning raw bytes so that it works even when the object table is empty.
func (d *Document) lastResort() []string {
	fallback := &page{fallback: d.documentCMaps()}
	var texts []string
	pos := 0
	for pos < len(d.data) {
		if d.budget.expired() {
			d.truncated = true
			break
		}
		loc := rawStream.FindIndex(d.data[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[1]
		if bytes.HasSuffix(d.data[:pos+loc[0]], []byte("end")) {
			pos = start
			continue
		}
		end := bytes.Index(d.data[start:], kwEndStr)
		if end < 0 {
			end = len(d.data) - start
		}
		blob := &object{stream: d.data[start : start+end], value: dict{"Filter": name("FlateDecode")}}
		content := d.streamData(blob, true)
		if balancedText(content) {
			if text := d.interpretPage(fallback, content); text != "" {
				texts = append(texts, text)
			}
		}
		pos = start + end
	}
	return texts
}
