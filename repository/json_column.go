package repository

import (
	"database/sql/driver"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// jsonColumn is datatypes.JSON declared as jsonb on Postgres and TEXT
// elsewhere. SQLite gives a JSON column numeric affinity, which turns a
// scalar document like 10 into an integer on read.
type jsonColumn datatypes.JSON

func (j jsonColumn) Value() (driver.Value, error) {
	return datatypes.JSON(j).Value()
}

func (j *jsonColumn) Scan(value any) error {
	return (*datatypes.JSON)(j).Scan(value)
}

func (jsonColumn) GormDataType() string {
	return datatypes.JSON(nil).GormDataType()
}

func (jsonColumn) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}
