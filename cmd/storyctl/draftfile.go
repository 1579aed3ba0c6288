package main

import (
	"fmt"
	"io"
	"strings"

	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// draftFile - YAML представление черновика. Цели выборов задаются номером
// страницы начиная с 1, как в сообщениях валидатора.
type draftFile struct {
	ID          string     `yaml:"id,omitempty"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
	Cover       string     `yaml:"cover,omitempty"`
	Pages       []pageFile `yaml:"pages"`
}

type pageFile struct {
	Text    string       `yaml:"text"`
	Image   string       `yaml:"image,omitempty"`
	Ending  bool         `yaml:"ending,omitempty"`
	Choices []choiceFile `yaml:"choices,omitempty"`
}

type choiceFile struct {
	Text string `yaml:"text"`
	Goto *int   `yaml:"goto"`
}

func decodeDraftFile(r io.Reader) (*storygraph.Draft, error) {
	var f draftFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("draft file is empty")
		}
		return nil, fmt.Errorf("failed to parse draft file: %w", err)
	}

	d := &storygraph.Draft{
		Title:          f.Title,
		Description:    f.Description,
		Tags:           f.Tags,
		CoverImagePath: f.Cover,
		Pages:          make([]storygraph.DraftPage, 0, len(f.Pages)),
	}
	if id := strings.TrimSpace(f.ID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid draft id %q: %w", f.ID, err)
		}
		d.ID = parsed
	}
	for _, p := range f.Pages {
		page := storygraph.NewPage(p.Text)
		page.ImagePath = p.Image
		page.IsEnding = p.Ending
		for _, c := range p.Choices {
			target := storygraph.NoTarget()
			if c.Goto != nil {
				target = storygraph.TargetPage(*c.Goto - 1)
			}
			page.Choices = append(page.Choices, storygraph.NewChoice(c.Text, target))
		}
		d.Pages = append(d.Pages, page)
	}
	return d, nil
}

func encodeDraftFile(w io.Writer, d *storygraph.Draft) error {
	f := draftFile{
		ID:          d.ID.String(),
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Cover:       d.CoverImagePath,
		Pages:       make([]pageFile, 0, len(d.Pages)),
	}
	for _, p := range d.Pages {
		pf := pageFile{Text: p.Text, Image: p.ImagePath, Ending: p.IsEnding}
		for _, c := range p.Choices {
			cf := choiceFile{Text: c.Text}
			if idx, ok := c.Target.Index(); ok {
				n := idx + 1
				cf.Goto = &n
			}
			pf.Choices = append(pf.Choices, cf)
		}
		f.Pages = append(f.Pages, pf)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}
	return enc.Close()
}
