package deb

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldPackage       ControlField = "Package"
	FieldVersion       ControlField = "Version"
	FieldArchitecture  ControlField = "Architecture"
	FieldDescription   ControlField = "Description"
	FieldSection       ControlField = "Section"
	FieldPriority      ControlField = "Priority"
	FieldDepends       ControlField = "Depends"
	FieldInstalledSize ControlField = "Installed-Size"
)

// reservedFields cannot be declared as custom control fields; they are
// driven by Metadata instead.
var reservedFields = []ControlField{FieldDescription, FieldPackage, FieldVersion, FieldArchitecture}

// ControlFile represents a standard file found in the control.tar.gz archive.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileConffiles ControlFile = "conffiles"
	FilePreinst   ControlFile = "preinst"
	FilePostinst  ControlFile = "postinst"
	FilePrerm     ControlFile = "prerm"
	FilePostrm    ControlFile = "postrm"
	FileConfig    ControlFile = "config"
	FileTemplates ControlFile = "templates"
)

// PackageFile represents a standard file found in the .deb archive (ar format).
type PackageFile string

const (
	PkgDebianBinary PackageFile = "debian-binary"
	PkgControlTarGz PackageFile = "control.tar.gz"
	PkgDataTarGz    PackageFile = "data.tar.gz"
)

// debianBinary is the content of the debian-binary member.
var debianBinary = []byte("2.0\n")

// Priorities lists the recognized values of the Priority field.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-archive.html#s-priorities
var Priorities = []string{"required", "important", "standard", "optional", "extra"}

const (
	DefaultArchitecture = "all"
	DefaultSection      = "misc"
	DefaultPriority     = "extra"
)
