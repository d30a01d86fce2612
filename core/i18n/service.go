package i18n

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

var ErrTranslationNotFound = core.NewNotFoundError("translation")

type (
	Repository interface {
		// UpsertTranslations inserts or updates rows matching (namespace, key, language).
		UpsertTranslations(ctx context.Context, ts ...Translation) ([]Translation, error)
		QueryTranslations(ctx context.Context, filter QueryFilter) ([]Translation, error)
		GetTranslation(ctx context.Context, id string) (Translation, error)
		DeleteTranslations(ctx context.Context, ids ...string) (int, error)
		Languages(ctx context.Context) ([]string, error)
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter) ([]Translation, error)
		Upsert(ctx context.Context, ut UpsertTranslation) (Translation, error)
		Delete(ctx context.Context, ids ...string) error
		Languages(ctx context.Context) ([]string, error)
		// Bundle returns every key of the language, falling back to the default language per key.
		Bundle(ctx context.Context, lang string) (Bundle, error)
		// Missing returns the default language rows that have no translation in lang.
		Missing(ctx context.Context, lang string) ([]Translation, error)
		// Import upserts a {key: value} map of one namespace and returns the row count.
		Import(ctx context.Context, lang, namespace string, values map[string]string) (int, error)
		// FillMissing copies default language values into lang as placeholders.
		FillMissing(ctx context.Context, lang string) (int, error)
		Export(ctx context.Context, lang string, format export.Format) (export.File, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Translation, error) {
	if filter.Language != "" {
		lang, err := CanonicalLanguage(filter.Language)
		if err != nil {
			return nil, err
		}
		filter.Language = lang
	}
	filter.Namespace = core.CleanString(filter.Namespace, true /* lower */)
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.QueryTranslations(ctx, filter)
}

func (svc *service) Upsert(ctx context.Context, ut UpsertTranslation) (Translation, error) {
	now := core.NowFunc()
	ts, err := svc.repo.UpsertTranslations(ctx, Translation{
		ID:        uuid.New().String(),
		Namespace: ut.Namespace,
		Key:       ut.Key,
		Language:  ut.Language,
		Value:     ut.Value,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Translation{}, errors.Wrap(err, "upserting translation")
	}
	return ts[0], nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteTranslations(ctx, ids...)
	return err
}

func (svc *service) Languages(ctx context.Context) ([]string, error) {
	langs, err := svc.repo.Languages(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(langs)
	return langs, nil
}

func (svc *service) Bundle(ctx context.Context, lang string) (Bundle, error) {
	lang, err := CanonicalLanguage(lang)
	if err != nil {
		return nil, err
	}

	bundle := make(Bundle)
	if lang != DefaultLanguage {
		defaults, err := svc.repo.QueryTranslations(ctx, QueryFilter{Language: DefaultLanguage})
		if err != nil {
			return nil, errors.Wrap(err, "querying default translations")
		}
		for _, t := range defaults {
			bundle[t.FullKey()] = t.Value
		}
	}

	ts, err := svc.repo.QueryTranslations(ctx, QueryFilter{Language: lang})
	if err != nil {
		return nil, errors.Wrap(err, "querying translations")
	}
	for _, t := range ts {
		if t.Value == "" {
			continue // keep the fallback
		}
		bundle[t.FullKey()] = t.Value
	}
	return bundle, nil
}

func (svc *service) Missing(ctx context.Context, lang string) ([]Translation, error) {
	lang, err := CanonicalLanguage(lang)
	if err != nil {
		return nil, err
	}
	if lang == DefaultLanguage {
		return []Translation{}, nil
	}

	defaults, err := svc.repo.QueryTranslations(ctx, QueryFilter{Language: DefaultLanguage})
	if err != nil {
		return nil, errors.Wrap(err, "querying default translations")
	}
	ts, err := svc.repo.QueryTranslations(ctx, QueryFilter{Language: lang})
	if err != nil {
		return nil, errors.Wrap(err, "querying translations")
	}

	have := make(map[string]bool, len(ts))
	for _, t := range ts {
		have[t.FullKey()] = true
	}
	missing := make([]Translation, 0)
	for _, t := range defaults {
		if !have[t.FullKey()] {
			missing = append(missing, t)
		}
	}
	sortTranslations(missing)
	return missing, nil
}

func (svc *service) Import(ctx context.Context, lang, namespace string, values map[string]string) (int, error) {
	lang, err := CanonicalLanguage(lang)
	if err != nil {
		return 0, err
	}
	namespace = core.CleanString(namespace, true /* lower */)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	now := core.NowFunc()
	rows := make([]Translation, 0, len(values))
	for key, value := range values {
		key = core.CleanString(key)
		if key == "" {
			continue
		}
		// "ns.key" entries override the namespace argument
		ns := namespace
		if i := strings.Index(key, "."); i > 0 && core.Validate.Var(key[:i], "slug") == nil && namespace == DefaultNamespace {
			ns, key = key[:i], key[i+1:]
		}
		rows = append(rows, Translation{
			ID:        uuid.New().String(),
			Namespace: ns,
			Key:       key,
			Language:  lang,
			Value:     value,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	sortTranslations(rows)

	saved, err := svc.repo.UpsertTranslations(ctx, rows...)
	if err != nil {
		return 0, errors.Wrap(err, "importing translations")
	}
	return len(saved), nil
}

func (svc *service) FillMissing(ctx context.Context, lang string) (int, error) {
	missing, err := svc.Missing(ctx, lang)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	lang, _ = CanonicalLanguage(lang)

	now := core.NowFunc()
	rows := make([]Translation, 0, len(missing))
	for _, t := range missing {
		rows = append(rows, Translation{
			ID:        uuid.New().String(),
			Namespace: t.Namespace,
			Key:       t.Key,
			Language:  lang,
			Value:     t.Value,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	saved, err := svc.repo.UpsertTranslations(ctx, rows...)
	if err != nil {
		return 0, errors.Wrap(err, "filling missing translations")
	}
	return len(saved), nil
}

func (svc *service) Export(ctx context.Context, lang string, format export.Format) (export.File, error) {
	lang, err := CanonicalLanguage(lang)
	if err != nil {
		return export.File{}, err
	}
	ts, err := svc.repo.QueryTranslations(ctx, QueryFilter{Language: lang})
	if err != nil {
		return export.File{}, errors.Wrap(err, "querying translations")
	}
	sortTranslations(ts)

	// JSON exports are importable bundles
	bundle := make(Bundle, len(ts))
	for _, t := range ts {
		bundle[t.FullKey()] = t.Value
	}
	return export.Render(translationsTable(lang, ts), format, "translations-"+lang, bundle)
}

func sortTranslations(ts []Translation) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Namespace != ts[j].Namespace {
			return ts[i].Namespace < ts[j].Namespace
		}
		return ts[i].Key < ts[j].Key
	})
}
