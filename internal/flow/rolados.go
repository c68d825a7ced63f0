package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcosum/arcobot/internal/models"
)

// VendorPhoneRolados receives rolled-metal and supplies requests.
const VendorPhoneRolados = "+52 222 114 8841"

// sheetDisplay maps stored sheet values to their customer-facing names.
func sheetDisplay(value string) string {
	switch value {
	case "zintro_alum":
		return "Zintro Alum"
	case "pintro":
		return "Pintro"
	}
	return value
}

// gaugeDisplay renders "cal_20" as "Calibre 20".
func gaugeDisplay(value string) string {
	return "Calibre " + strings.TrimPrefix(value, "cal_")
}

// RoladosForm is the rolled sheet metal funnel. The sheet type and
// gauge questions only apply to the rolling service.
func RoladosForm() *FormDefinition {
	suppliesOnly := func(s *FormSession) bool {
		return s.Value("servicio") == "suministros"
	}
	return &FormDefinition{
		Division:    models.DivisionRolados,
		LeadType:    models.LeadTypeRoladosForm,
		LeadScore:   8,
		VendorPhone: VendorPhoneRolados,
		Intro:       "🔧 *FORMULARIO ROLADOS* 📋\n\nTe ayudaré a procesar tu solicitud de laminados y suministros industriales.",
		Fields: []FieldSpec{
			{
				Name: "nombre",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 1 de 6:* ¿Cuál es tu nombre completo?\n\n(Formato: Nombre Apellido)"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.FullName(input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor ingresa nombre y apellido válidos\n\nFormato: Juan Pérez"
				},
			},
			{
				Name:        "servicio",
				NoInterrupt: true,
				Prompt: func(s *FormSession) string {
					return fmt.Sprintf("✅ Gracias, %s!\n\n📝 *Paso 2 de 6:* ¿Qué servicio necesitas?\n\nEscribe: rolado (venta de láminas) o suministros", firstName(s))
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.Service(ctx, input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ No entendí el servicio.\n\nEscribe: rolado (venta de láminas) o suministros"
				},
			},
			{
				Name: "ubicacion",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 3 de 6:* ¿En qué estado y municipio necesitas el material?\n\nEjemplo: Puebla, Puebla o Tlaxcala, Tenancingo"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.MinLength(input, 3)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor indica el estado y municipio\n\nEjemplo: Puebla, Puebla"
				},
			},
			{
				Name: "cantidad",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 4 de 6:* ¿Cuántos kilos o toneladas necesitas?\n\nEjemplos: \"500 kg\", \"2 toneladas\", \"media tonelada\""
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.Quantity(ctx, input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ No entendí la cantidad.\n\nEjemplos: \"500 kg\", \"2 toneladas\", \"media tonelada\""
				},
			},
			{
				Name:   "lamina",
				SkipIf: suppliesOnly,
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 5 de 6:* ¿Qué tipo de lámina?\n\nEscribe: Zintro Alum o Pintro"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.SheetType(ctx, input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ No entendí el tipo de lámina.\n\nEscribe: Zintro Alum o Pintro"
				},
			},
			{
				Name:   "calibre",
				SkipIf: suppliesOnly,
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 6 de 6:* ¿Qué calibre necesitas?\n\n(Escribe: cal 18, cal 20, cal 22 o cal 24)"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.Gauge(ctx, input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Calibre no disponible.\n\n(Escribe: cal 18, cal 20, cal 22 o cal 24)"
				},
			},
		},
		Confirm: func(s *FormSession) string {
			var b strings.Builder
			b.WriteString("✅ *RESUMEN DE TU SOLICITUD*\n\n")
			fmt.Fprintf(&b, "👤 *Nombre:* %s\n", s.Value("nombre"))
			fmt.Fprintf(&b, "🔧 *Servicio:* %s\n", s.Value("servicio"))
			fmt.Fprintf(&b, "📍 *Ubicación:* %s\n", s.Value("ubicacion"))
			fmt.Fprintf(&b, "⚖️ *Cantidad:* %s\n", s.Value("cantidad"))
			if s.Value("servicio") == "rolado" {
				fmt.Fprintf(&b, "🔩 *Lámina:* %s\n", sheetDisplay(s.Value("lamina")))
				fmt.Fprintf(&b, "📐 *Calibre:* %s\n", gaugeDisplay(s.Value("calibre")))
			}
			b.WriteString("\n¿Es correcto?\n\nResponde: sí o no")
			return b.String()
		},
		Completion: func(s *FormSession) string {
			return fmt.Sprintf("✅ *¡Solicitud Enviada Correctamente!*\n\nTu solicitud de ARCOSUM ROLADOS ha sido registrada exitosamente y enviada al **Vendedor de ARCOSUM**.\n\n📞 *El Vendedor de ARCOSUM se pondrá en contacto contigo en las próximas 2 horas.*\n\nSi es urgente: %s\n\n*¡Gracias por confiar en ARCOSUM!* 🏭", VendorPhoneRolados)
		},
		VendorNotice: func(s *FormSession) string {
			var b strings.Builder
			b.WriteString("🚨 *NUEVA SOLICITUD ROLADOS*\n\n")
			fmt.Fprintf(&b, "📱 *Cliente:* %s\n", s.Phone)
			fmt.Fprintf(&b, "👤 *Nombre:* %s\n\n", s.Value("nombre"))
			fmt.Fprintf(&b, "🔧 *Servicio:* %s\n", s.Value("servicio"))
			fmt.Fprintf(&b, "📍 *Ubicación:* %s\n", s.Value("ubicacion"))
			fmt.Fprintf(&b, "⚖️ *Cantidad:* %s\n", s.Value("cantidad"))
			if s.Value("servicio") == "rolado" {
				fmt.Fprintf(&b, "🔩 *Lámina:* %s\n", sheetDisplay(s.Value("lamina")))
				fmt.Fprintf(&b, "📐 *Calibre:* %s\n", gaugeDisplay(s.Value("calibre")))
			}
			b.WriteString("\n⏰ *Contactar en los próximos 30 minutos*")
			return b.String()
		},
		Summary: func(s *FormSession) string {
			return fmt.Sprintf("Solicitud de %s: %s en %s", s.Value("servicio"), s.Value("cantidad"), s.Value("ubicacion"))
		},
	}
}
