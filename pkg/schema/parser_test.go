package schema_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/ormkit"
	"github.com/ormkit/ormkit/pkg/schema"
)

type parsedAlbum struct {
	ID   int64  `orm:"primarykey"`
	Name string `orm:"size:100;unique"`
}

type parsedTrack struct {
	ID       int64 `orm:"primarykey"`
	Album    ormkit.Ref[parsedAlbum]
	Title    string `orm:"size:100;index"`
	Position int
	Loud     bool    `orm:"default:true"`
	Rating   *float64
	Notes    string    // no size tag, maps to unbounded text
	AddedAt  time.Time `orm:"null"`
}

func TestParseModel(t *testing.T) {
	model, err := schema.Parse(&parsedTrack{})
	require.NoError(t, err)

	assert.Equal(t, "parsedTrack", model.Name)
	assert.Equal(t, "parsed_tracks", model.TableName)
	require.NotNil(t, model.PrimaryKey)
	assert.Equal(t, "id", model.PrimaryKey.DBName)
	assert.True(t, model.PrimaryKey.AutoIncrement, "integer primary keys default to backend-assigned")

	title, ok := model.Field("Title")
	require.True(t, ok)
	assert.Equal(t, schema.TypeString, title.Type)
	assert.Equal(t, 100, title.Size)
	assert.True(t, title.HasIndex)

	notes, ok := model.Field("Notes")
	require.True(t, ok)
	assert.Equal(t, schema.TypeText, notes.Type)

	rating, ok := model.Field("Rating")
	require.True(t, ok)
	assert.True(t, rating.Nullable, "pointer fields are nullable by default")
	assert.Equal(t, schema.TypeFloat, rating.Type)

	loud, ok := model.Field("Loud")
	require.True(t, ok)
	assert.Equal(t, schema.TypeBoolean, loud.Type)
	assert.Equal(t, true, loud.Default)

	added, ok := model.Field("AddedAt")
	require.True(t, ok)
	assert.Equal(t, schema.TypeDateTime, added.Type)
	assert.True(t, added.Nullable)
}

func TestParseRelation(t *testing.T) {
	model, err := schema.Parse(&parsedTrack{})
	require.NoError(t, err)

	rel, ok := model.Relation("album")
	require.True(t, ok, "relation is registered under the snake_case field name")
	assert.Equal(t, "album_id", rel.Field.DBName)
	assert.Equal(t, schema.TypeReference, rel.Field.Type)
	require.NotNil(t, rel.Model)
	assert.Equal(t, "parsedAlbum", rel.Model.Name)

	// The FK column adopts the related primary key's Go type.
	assert.Equal(t, rel.Model.PrimaryKey.GoType, rel.Field.GoType)

	// The relation segment resolves through Lookup, the plain column too.
	_, gotRel, ok := model.Lookup("album")
	require.True(t, ok)
	assert.Same(t, rel, gotRel)
	gotField, _, ok := model.Lookup("album_id")
	require.True(t, ok)
	assert.Same(t, rel.Field, gotField)
}

type selfRef struct {
	ID      int64 `orm:"primarykey"`
	Manager ormkit.Ref[selfRef] `orm:"null"`
}

func TestParseSelfReference(t *testing.T) {
	model, err := schema.Parse(&selfRef{})
	require.NoError(t, err)
	rel, ok := model.Relation("manager")
	require.True(t, ok)
	assert.Same(t, model, rel.Model)
	assert.True(t, rel.Field.Nullable)
}

func TestParseEnum(t *testing.T) {
	type shirt struct {
		ID   int64  `orm:"primarykey"`
		Size string `orm:"enum:'small','medium','large';default:'medium'"`
	}
	model, err := schema.Parse(&shirt{})
	require.NoError(t, err)
	field, ok := model.Field("Size")
	require.True(t, ok)
	assert.Equal(t, schema.TypeEnum, field.Type)
	assert.Equal(t, []string{"small", "medium", "large"}, field.EnumValues)
	assert.Equal(t, "medium", field.Default)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"no primary key", &struct {
			Name string
		}{}},
		{"two primary keys", &struct {
			A int64 `orm:"primarykey"`
			B int64 `orm:"primarykey"`
		}{}},
		{"nullable primary key", &struct {
			ID *int64 `orm:"primarykey"`
		}{}},
		{"unknown tag key", &struct {
			ID   int64  `orm:"primarykey"`
			Name string `orm:"sise:100"`
		}{}},
		{"enum on non-string", &struct {
			ID   int64 `orm:"primarykey"`
			Code int   `orm:"enum:'a','b'"`
		}{}},
		{"composite without json tag", &struct {
			ID   int64 `orm:"primarykey"`
			Meta map[string]string
		}{}},
		{"duplicate column", &struct {
			ID   int64  `orm:"primarykey"`
			A    string `orm:"column:x"`
			B    string `orm:"column:x"`
		}{}},
		{"foreign key as primary key", &struct {
			ID    int64               `orm:"primarykey"`
			Album ormkit.Ref[parsedAlbum] `orm:"pk"`
		}{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schema.Parse(tc.value)
			require.Error(t, err)
			var schemaErr *schema.SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestParseIgnoredFields(t *testing.T) {
	type carrier struct {
		ID      int64 `orm:"primarykey"`
		Skipped string `orm:"-"`
		hidden  string //nolint:unused
	}
	model, err := schema.Parse(&carrier{})
	require.NoError(t, err)
	_, ok := model.Field("Skipped")
	assert.False(t, ok)
	assert.Len(t, model.Fields, 1)
}

func TestParseConcurrentFirstParse(t *testing.T) {
	// Every caller must observe fully wired relations, even while another
	// goroutine performs the first-time parse of the same model graph.
	for round := 0; round < 50; round++ {
		parser := schema.NewParser(nil)
		models := make([]*schema.Model, 8)
		errs := make([]error, len(models))

		var wg sync.WaitGroup
		for i := range models {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				models[i], errs[i] = parser.Parse(&parsedTrack{})
			}(i)
		}
		wg.Wait()

		for i, model := range models {
			require.NoError(t, errs[i])
			require.NotNil(t, model)
			rel, ok := model.Relation("album")
			require.True(t, ok)
			require.NotNil(t, rel.Model, "relations must be resolved before the model is visible")
			require.NotNil(t, rel.Model.PrimaryKey)
			require.Equal(t, rel.Model.PrimaryKey.GoType, rel.Field.GoType)
		}
	}
}

func TestParseCacheReturnsSameModel(t *testing.T) {
	first, err := schema.Parse(&parsedAlbum{})
	require.NoError(t, err)
	second, err := schema.Parse(parsedAlbum{})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

type upperNaming struct{}

func (upperNaming) TableName(structName string) string           { return "tbl_" + structName }
func (upperNaming) ColumnName(fieldName string) string           { return "c_" + fieldName }
func (upperNaming) ReferenceColumnName(fieldName string) string  { return "r_" + fieldName }

func TestParserNamingStrategy(t *testing.T) {
	parser := schema.NewParser(upperNaming{})
	model, err := parser.Parse(&parsedAlbum{})
	require.NoError(t, err)
	assert.Equal(t, "tbl_parsedAlbum", model.TableName)
	field, ok := model.Field("Name")
	require.True(t, ok)
	assert.Equal(t, "c_Name", field.DBName)
}
