package main

import (
	"context"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/consent"
)

// seedFile is the layout of a seed file:
//
//	[[cookie_categories]]
//	key = "necessary"
//	name = "Strictly necessary"
//	required = true
//
//	[[contact_types]]
//	key = "support"
//	name = "Technical support"
//	is_system = true
//
//	[translations.fr]
//	"nav.home" = "Accueil"
type seedFile struct {
	CookieCategories []seedCategory               `toml:"cookie_categories"`
	ContactTypes     []seedContactType            `toml:"contact_types"`
	Translations     map[string]map[string]string `toml:"translations"`
}

type seedCategory struct {
	Key         string `toml:"key"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
	Enabled     *bool  `toml:"enabled"`
	SortOrder   int    `toml:"sort_order"`
}

type seedContactType struct {
	Key         string `toml:"key"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	IsSystem    bool   `toml:"is_system"`
	Active      *bool  `toml:"active"`
	SortOrder   int    `toml:"sort_order"`
}

type seedResult struct {
	categories   int
	contactTypes int
	translations int
}

// seed loads path into the database. Rows whose key already exists are left untouched.
func (cli *commandLine) seed(ctx context.Context, path string) (seedResult, error) {
	var res seedResult
	var f seedFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return res, errors.Wrapf(err, "reading %s", path)
	}

	cats, err := cli.consentSvc.QueryCategories(ctx, false)
	if err != nil {
		return res, errors.Wrap(err, "querying cookie categories")
	}
	catKeys := make(map[string]bool, len(cats))
	for _, c := range cats {
		catKeys[c.Key] = true
	}
	for _, sc := range f.CookieCategories {
		nc := consent.NewCategory{
			Key:         sc.Key,
			Name:        sc.Name,
			Description: sc.Description,
			Required:    sc.Required,
			Enabled:     sc.Enabled,
			SortOrder:   sc.SortOrder,
		}
		if err := nc.Validate(); err != nil {
			return res, errors.Wrapf(err, "cookie category %q", sc.Key)
		}
		if catKeys[nc.Key] {
			continue
		}
		if _, err := cli.consentSvc.CreateCategory(ctx, nc); err != nil {
			return res, errors.Wrapf(err, "creating cookie category %q", nc.Key)
		}
		catKeys[nc.Key] = true
		res.categories++
	}

	types, err := cli.chatSvc.QueryContactTypes(ctx, false)
	if err != nil {
		return res, errors.Wrap(err, "querying contact types")
	}
	typeKeys := make(map[string]bool, len(types))
	for _, ct := range types {
		typeKeys[ct.Key] = true
	}
	for _, st := range f.ContactTypes {
		nc := chat.NewContactType{
			Key:         st.Key,
			Name:        st.Name,
			Description: st.Description,
			IsSystem:    st.IsSystem,
			Active:      st.Active,
			SortOrder:   st.SortOrder,
		}
		if err := nc.Validate(); err != nil {
			return res, errors.Wrapf(err, "contact type %q", st.Key)
		}
		if typeKeys[nc.Key] {
			continue
		}
		if _, err := cli.chatSvc.CreateContactType(ctx, nc); err != nil {
			return res, errors.Wrapf(err, "creating contact type %q", nc.Key)
		}
		typeKeys[nc.Key] = true
		res.contactTypes++
	}

	langs := make([]string, 0, len(f.Translations))
	for lang := range f.Translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		n, err := cli.i18nSvc.Import(ctx, lang, "", f.Translations[lang])
		if err != nil {
			return res, errors.Wrapf(err, "importing %s translations", lang)
		}
		res.translations += n
	}
	return res, nil
}
