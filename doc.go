// Package ormkit maps Go structs to database tables through reflection and
// struct tags, and offers a typed manager per model for creating, querying,
// updating and deleting instances.
//
// A model is a plain struct; foreign keys are declared with Ref:
//
//	type Album struct {
//		ID   int64  `orm:"primarykey"`
//		Name string `orm:"size:100"`
//	}
//
//	type Track struct {
//		ID       int64  `orm:"primarykey"`
//		Album    ormkit.Ref[Album]
//		Title    string `orm:"size:100"`
//		Position int
//	}
//
// Managers are generic over the model type. Predicates use double-underscore
// keys combining a field, an optional relation hop, and an operator:
//
//	tracks := ormkit.NewManager[Track](db)
//	loud, err := tracks.Filter("album__name__iexact", "fantasies").All(ctx)
//
// References load lazily: materialized instances carry only the related
// primary key until Load (or an eager SelectRelated query) fills them in.
package ormkit
