package configuration

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/utils"
)

func OpenExistingDatabase() (adb *database.ArchiveDB, err error) {
	dbPath := viper.GetString("database")

	var exists bool
	if exists, err = utils.PathExists(dbPath); err == nil {
		if exists {
			adb, err = database.OpenArchiveDB(dbPath)
		} else {
			err = fmt.Errorf("Database %q does not exist", dbPath)
		}
	}
	return
}
