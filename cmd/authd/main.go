// Command authd runs the identity service: account signup, login and
// role-based authorization over HTTP.
//
// @title                       Identity Service API
// @version                     1.0
// @description                 Account signup, login and role-based authorization.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

func main() {
	Execute()
}
