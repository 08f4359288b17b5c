package main

import (
	"errors"
	"flag"
	"mime"
	"path/filepath"
	"strings"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/cv-keeper/internal/model"
)

// sectionFlags are the section fields shared by add and update.
type sectionFlags struct {
	id      *string
	title   *string
	content *string
	file    *string
	typ     *string
}

func bindSectionFlags(fs *flag.FlagSet) sectionFlags {
	return sectionFlags{
		id:      fs.String("id", "", "section id"),
		title:   fs.String("title", "", "section title"),
		content: fs.String("content", "", "section content"),
		file:    fs.String("file", "", "read content from file ('-' for stdin)"),
		typ:     fs.String("type", "", "section type (guessed from -file extension when empty)"),
	}
}

func autoUUID(id *string) {
	if *id == "" {
		v, _ := u.NewV4()
		*id = v.String()
	}
}

// typeFromFile maps a file extension to a section type, e.g. "notes.md" to
// "markdown" and "cv.txt" to "text".
func typeFromFile(path string) string {
	if path == "" || path == "-" {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return "markdown"
	case "":
		return ""
	}
	mt := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	switch mt {
	case "text/plain":
		return "text"
	case "text/html":
		return "html"
	case "application/json":
		return "json"
	default:
		return ""
	}
}

// resolveContent reads -content or -file; the bool reports whether either was given.
func (f sectionFlags) resolveContent() (string, bool, error) {
	if *f.file != "" && *f.content != "" {
		return "", false, errors.New("use either -content or -file")
	}
	if *f.file != "" {
		b, err := readAll(*f.file)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
	return *f.content, *f.content != "", nil
}

// buildBlock assembles a new section; an empty id gets a UUID.
func buildBlock(f sectionFlags) (model.Block, error) {
	if strings.TrimSpace(*f.title) == "" {
		return model.Block{}, errors.New("need -title")
	}
	content, _, err := f.resolveContent()
	if err != nil {
		return model.Block{}, err
	}
	autoUUID(f.id)
	typ := *f.typ
	if typ == "" {
		typ = typeFromFile(*f.file)
	}
	return model.Block{ID: *f.id, Title: *f.title, Content: content, Type: typ}, nil
}

// buildPatch sets only the fields given on the command line, so an explicit
// empty -title clears the title while an absent one keeps it.
func buildPatch(fs *flag.FlagSet, f sectionFlags) (model.SectionPatch, error) {
	if strings.TrimSpace(*f.id) == "" {
		return model.SectionPatch{}, errors.New("need -id")
	}
	p := model.SectionPatch{ID: *f.id}
	given := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { given[fl.Name] = true })

	if given["title"] {
		p.Title = f.title
	}
	if given["content"] || given["file"] {
		content, _, err := f.resolveContent()
		if err != nil {
			return model.SectionPatch{}, err
		}
		p.Content = &content
	}
	typ := *f.typ
	if !given["type"] {
		typ = typeFromFile(*f.file)
	}
	if given["type"] || typ != "" {
		p.Type = &typ
	}
	if p.Title == nil && p.Content == nil && p.Type == nil {
		return model.SectionPatch{}, errors.New("nothing to update")
	}
	return p, nil
}
