// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compile

import (
	"fmt"
	"strings"

	"github.com/angular-go/ngcc/host"
	"github.com/angular-go/ngcc/jsscan"
)

type binding struct {
	prop   string
	public string
}

func parseBinding(s string) binding {
	prop, public, ok := strings.Cut(s, ":")
	prop = strings.TrimSpace(prop)
	if !ok {
		return binding{prop: prop, public: prop}
	}
	return binding{prop: prop, public: strings.TrimSpace(public)}
}

type directiveMeta struct {
	selector    string
	hasSelector bool
	inputs      []binding
	outputs     []binding
	attributes  DefinitionMap
	listeners   DefinitionMap
	properties  DefinitionMap
	queries     []string
	viewQueries []string
	exportAs    []string
}

func (cc *classCompiler) directive(meta *metadata, isComponent bool) error {
	dm, err := cc.directiveMeta(meta)
	if err != nil {
		return err
	}
	m := &DefinitionMap{}
	m.Set("minVersion", quote(MinVersion))
	m.Set("version", quote(cc.opts.Version))
	m.Set("type", cc.typeRef())
	if dm.hasSelector {
		m.Set("selector", quote(dm.selector))
	}
	inputs := &DefinitionMap{}
	for _, b := range dm.inputs {
		if b.prop == b.public {
			inputs.Set(b.prop, quote(b.public))
			continue
		}
		inputs.Set(b.prop, arrayLiteral(quoteAll([]string{b.public, b.prop})))
	}
	if inputs.Len() > 0 {
		m.Set("inputs", inputs.String())
	}
	outputs := &DefinitionMap{}
	for _, b := range dm.outputs {
		outputs.Set(b.prop, quote(b.public))
	}
	if outputs.Len() > 0 {
		m.Set("outputs", outputs.String())
	}
	hostMap := &DefinitionMap{}
	if dm.attributes.Len() > 0 {
		hostMap.Set("attributes", dm.attributes.String())
	}
	if dm.listeners.Len() > 0 {
		hostMap.Set("listeners", dm.listeners.String())
	}
	if dm.properties.Len() > 0 {
		hostMap.Set("properties", dm.properties.String())
	}
	if hostMap.Len() > 0 {
		m.Set("host", hostMap.String())
	}
	m.Set("providers", meta.raw("providers"))
	if len(dm.queries) > 0 {
		m.Set("queries", arrayLiteral(dm.queries))
	}
	if len(dm.viewQueries) > 0 {
		m.Set("viewQueries", arrayLiteral(dm.viewQueries))
	}
	if len(dm.exportAs) > 0 {
		m.Set("exportAs", arrayLiteral(quoteAll(dm.exportAs)))
	}
	if cc.c.Extends {
		m.Set("usesInheritance", "true")
	}
	if !cc.opts.IsCore {
		m.Set("ngImport", CoreAlias)
	}

	exportAsType := "never"
	if len(dm.exportAs) > 0 {
		exportAsType = arrayLiteral(quoteAll(dm.exportAs))
	}
	inputsType := &DefinitionMap{}
	for _, b := range dm.inputs {
		inputsType.Set(b.prop, quote(b.public))
	}
	outputsType := &DefinitionMap{}
	for _, b := range dm.outputs {
		outputsType.Set(b.prop, quote(b.public))
	}
	var queryFields []string
	for _, q := range append(cc.queryProps(true), cc.queryProps(false)...) {
		queryFields = append(queryFields, quote(q))
	}
	queryType := "never"
	if len(queryFields) > 0 {
		queryType = strings.Join(queryFields, " | ")
	}

	if !isComponent {
		selectorType := "never"
		if dm.hasSelector {
			selectorType = quote(dm.selector)
		}
		cc.add("ɵdir",
			cc.opts.core("ɵɵngDeclareDirective")+"("+m.String()+")",
			fmt.Sprintf("%s<%s, %s, %s, %s, %s, %s>", cc.opts.core("ɵɵDirectiveDeclaration"), cc.c.Name,
				selectorType, exportAsType, inputsType.TypeLiteral(), outputsType.TypeLiteral(), queryType))
		return nil
	}

	if err := cc.component(meta, m); err != nil {
		return err
	}
	selector := "ng-component"
	if dm.hasSelector {
		selector = dm.selector
	}
	cc.add("ɵcmp",
		cc.opts.core("ɵɵngDeclareComponent")+"("+m.String()+")",
		fmt.Sprintf("%s<%s, %s, %s, %s, %s, %s, never>", cc.opts.core("ɵɵComponentDeclaration"), cc.c.Name,
			quote(selector), exportAsType, inputsType.TypeLiteral(), outputsType.TypeLiteral(), queryType))
	return nil
}

// queryProps returns property names of content (or view) queries.
func (cc *classCompiler) queryProps(content bool) []string {
	var names []string
	for _, member := range cc.c.PropDecorators {
		for _, d := range member.Decorators {
			if !d.IsAngular(cc.opts.IsCore) {
				continue
			}
			switch d.Name {
			case "ContentChild", "ContentChildren":
				if content {
					names = append(names, member.Name)
				}
			case "ViewChild", "ViewChildren":
				if !content {
					names = append(names, member.Name)
				}
			}
		}
	}
	return names
}

func (cc *classCompiler) directiveMeta(meta *metadata) (*directiveMeta, error) {
	dm := &directiveMeta{}
	var err error
	dm.selector, dm.hasSelector, err = meta.str("selector")
	if err != nil {
		return nil, err
	}
	if dm.hasSelector {
		if _, err := ParseSelector(dm.selector); err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", dm.selector, err)
		}
	}
	for _, key := range []string{"inputs", "outputs"} {
		values, err := meta.stringArray(key)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			b := parseBinding(v)
			if key == "inputs" {
				dm.inputs = append(dm.inputs, b)
			} else {
				dm.outputs = append(dm.outputs, b)
			}
		}
	}
	if exportAs, ok, err := meta.str("exportAs"); err != nil {
		return nil, err
	} else if ok {
		dm.exportAs = splitTrim(exportAs, ",")
	}
	if err := cc.hostMeta(meta, dm); err != nil {
		return nil, err
	}
	for _, member := range cc.c.PropDecorators {
		for _, d := range member.Decorators {
			if !d.IsAngular(cc.opts.IsCore) {
				continue
			}
			if err := cc.memberDecorator(dm, member.Name, d); err != nil {
				return nil, err
			}
		}
	}
	return dm, nil
}

// hostMeta reads the `host` object of the decorator.
func (cc *classCompiler) hostMeta(meta *metadata, dm *directiveMeta) error {
	r, ok := meta.props["host"]
	if !ok {
		return nil
	}
	if !cc.ast.Is(r.First, "{") {
		return fmt.Errorf("@%s.host must be an object literal", meta.name)
	}
	props, err := cc.ast.Properties(r.First)
	if err != nil {
		return err
	}
	for _, p := range props {
		key := p.Key
		value := cc.ast.Text(p.Value.First, p.Value.Last)
		switch {
		case strings.HasPrefix(key, "(") && strings.HasSuffix(key, ")"):
			s, ok := stringValue(cc.ast, p.Value)
			if !ok {
				return fmt.Errorf("host listener %s must be a string literal", key)
			}
			dm.listeners.Set(key[1:len(key)-1], quote(s))
		case strings.HasPrefix(key, "[") && strings.HasSuffix(key, "]"):
			s, ok := stringValue(cc.ast, p.Value)
			if !ok {
				return fmt.Errorf("host binding %s must be a string literal", key)
			}
			dm.properties.Set(key[1:len(key)-1], quote(s))
		default:
			dm.attributes.Set(key, value)
		}
	}
	return nil
}

func stringValue(ast *jsscan.File, r jsscan.Range) (string, bool) {
	if r.First != r.Last || ast.Tokens[r.First].Kind != jsscan.String {
		return "", false
	}
	return jsscan.StringValue(ast.Tokens[r.First]), true
}

func (cc *classCompiler) memberDecorator(dm *directiveMeta, member string, d *host.Decorator) error {
	switch d.Name {
	case "Input":
		public := member
		if s, ok := stringArg(cc.ast, d, 0); ok {
			public = s
		}
		dm.inputs = append(dm.inputs, binding{prop: member, public: public})
	case "Output":
		public := member
		if s, ok := stringArg(cc.ast, d, 0); ok {
			public = s
		}
		dm.outputs = append(dm.outputs, binding{prop: member, public: public})
	case "HostBinding":
		name := member
		if s, ok := stringArg(cc.ast, d, 0); ok {
			name = s
		}
		dm.properties.Set(name, quote(member))
	case "HostListener":
		event, ok := stringArg(cc.ast, d, 0)
		if !ok {
			return fmt.Errorf("@HostListener on %s must have an event name", member)
		}
		var args []string
		if len(d.Args) > 1 {
			a := d.Args[1]
			if !cc.ast.Is(a.First, "[") {
				return fmt.Errorf("@HostListener on %s: arguments must be an array literal", member)
			}
			elems, err := cc.ast.Elements(a.First)
			if err != nil {
				return err
			}
			for _, e := range elems {
				s, ok := stringValue(cc.ast, e)
				if !ok {
					return fmt.Errorf("@HostListener on %s: arguments must be string literals", member)
				}
				args = append(args, s)
			}
		}
		dm.listeners.Set(event, quote(member+"("+strings.Join(args, ", ")+")"))
	case "ContentChild", "ContentChildren", "ViewChild", "ViewChildren":
		q, err := cc.query(member, d)
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name, "Content") {
			dm.queries = append(dm.queries, q)
		} else {
			dm.viewQueries = append(dm.viewQueries, q)
		}
	}
	return nil
}

func (cc *classCompiler) query(member string, d *host.Decorator) (string, error) {
	if len(d.Args) == 0 {
		return "", fmt.Errorf("@%s on %s must have a predicate", d.Name, member)
	}
	m := &DefinitionMap{}
	m.Set("propertyName", quote(member))
	if strings.HasSuffix(d.Name, "Child") {
		m.Set("first", "true")
	}
	pred := d.Args[0]
	if s, ok := stringValue(cc.ast, pred); ok {
		m.Set("predicate", arrayLiteral(quoteAll(splitTrim(s, ","))))
	} else {
		m.Set("predicate", cc.ast.Text(pred.First, pred.Last))
	}
	descendants := d.Name != "ContentChildren"
	var read, static string
	if len(d.Args) > 1 {
		opts := d.Args[1]
		if !cc.ast.Is(opts.First, "{") {
			return "", fmt.Errorf("@%s on %s: options must be an object literal", d.Name, member)
		}
		if r, ok := cc.ast.Property(opts.First, "descendants"); ok {
			descendants = cc.ast.Text(r.First, r.Last) == "true"
		}
		if r, ok := cc.ast.Property(opts.First, "read"); ok {
			read = cc.ast.Text(r.First, r.Last)
		}
		if r, ok := cc.ast.Property(opts.First, "static"); ok && cc.ast.Text(r.First, r.Last) == "true" {
			static = "true"
		}
	}
	if descendants {
		m.Set("descendants", "true")
	}
	m.Set("read", read)
	m.Set("static", static)
	return m.String(), nil
}

// component adds component fields to the directive definition m.
func (cc *classCompiler) component(meta *metadata, m *DefinitionMap) error {
	switch {
	case meta.raw("template") != "":
		m.Set("template", meta.raw("template"))
		m.Set("isInline", "true")
	case meta.raw("templateUrl") != "":
		url, _, err := meta.str("templateUrl")
		if err != nil {
			return err
		}
		tmpl, err := cc.readResource(url)
		if err != nil {
			return err
		}
		m.Set("template", quote(tmpl))
	default:
		return fmt.Errorf("component is missing a template")
	}
	var styles []string
	if elems, ok := meta.array("styles"); ok {
		for _, e := range elems {
			styles = append(styles, cc.ast.Text(e.First, e.Last))
		}
	} else if raw := meta.raw("styles"); raw != "" {
		return fmt.Errorf("@Component.styles must be an array literal")
	}
	urls, err := meta.stringArray("styleUrls")
	if err != nil {
		return err
	}
	for _, url := range urls {
		style, err := cc.readResource(url)
		if err != nil {
			return err
		}
		styles = append(styles, quote(style))
	}
	if len(styles) > 0 {
		m.Set("styles", arrayLiteral(styles))
	}
	for _, key := range []string{"viewProviders", "animations", "changeDetection", "encapsulation", "interpolation", "preserveWhitespaces"} {
		m.Set(key, meta.raw(key))
	}
	return nil
}

func (cc *classCompiler) readResource(url string) (string, error) {
	if cc.opts.ReadResource == nil {
		return "", fmt.Errorf("cannot read resource %q", url)
	}
	s, err := cc.opts.ReadResource(url)
	if err != nil {
		return "", fmt.Errorf("failed to read resource %q: %w", url, err)
	}
	return s, nil
}
