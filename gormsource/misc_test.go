package gormsource

import (
	"context"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Alp4ka/flowpager"
)

var _sqlMockFnList = []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
	newGORMMySQLMock,
	newGORMPostgresMock,
}

const (
	_qUsersBase = "^SELECT \\* FROM [`'\"]users[`'\"] WHERE name = [`'\"]lol[`'\"]"
	_qArg       = "(?:\\$\\d|\\?)"
)

type tUser struct {
	ID   uint
	Name string
}

var _userGetters = Getters[tUser]{
	"id":   func(u tUser) any { return u.ID },
	"name": func(u tUser) any { return u.Name },
}

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

func usersQuery(db *gorm.DB) *gorm.DB {
	return db.Select("*").Table("users").Where("name = 'lol'")
}

func userRows(ids ...uint) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name"})
	for _, id := range ids {
		rows.AddRow(id, "lol")
	}

	return rows
}

func request[K comparable](direction flowpager.LoadDirection, key *K, size int) flowpager.LoadRequest[K] {
	return flowpager.LoadRequest[K]{Direction: direction, Key: key, RequestedSize: size}
}

func userIDs(users []tUser) []uint {
	ret := make([]uint, 0, len(users))
	for _, u := range users {
		ret = append(ret, u.ID)
	}

	return ret
}

var _bg = context.Background()
